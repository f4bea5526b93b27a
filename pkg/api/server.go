// Package api 基于 gin 暴露分析结果查询、策略绩效查询和更新任务管理的HTTP接口。
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/logger"
	"stockanalyzer/pkg/storage"
	"stockanalyzer/pkg/updater"
)

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Config API服务配置
type Config struct {
	Port string `json:"port" mapstructure:"port"` // 监听端口
	Mode string `json:"mode" mapstructure:"mode"` // debug, release, test
}

// Server 分析系统的HTTP服务
type Server struct {
	cfg     Config
	store   storage.Storage
	updater *updater.Updater
	server  *http.Server
	log     *logrus.Entry
}

// NewServer 创建HTTP服务。updater 可以为 nil，此时更新相关接口返回503。
func NewServer(cfg Config, store storage.Storage, u *updater.Updater) *Server {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	return &Server{
		cfg:     cfg,
		store:   store,
		updater: u,
		log:     logger.WithComponent("APIServer"),
	}
}

// routes 注册全部路由
func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.corsMiddleware())

	router.GET("/health", s.healthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/results/:code", s.getResults)
		v1.GET("/results", s.listResults)
		v1.GET("/performance", s.listPerformance)

		v1.POST("/update", s.triggerUpdate)
		v1.GET("/update/status", s.updateStatus)
	}
	return router
}

// Start 在后台启动HTTP服务。
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.routes(),
	}

	s.log.Infof("API服务启动，监听端口 %s", s.cfg.Port)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Fatal("HTTP服务启动失败")
		}
	}()
	return nil
}

// Stop 优雅关闭HTTP服务
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.WithError(err).Error("HTTP服务关闭失败")
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
	}
	if s.updater != nil {
		if task := s.updater.CurrentTask(); task != nil {
			health["updating"] = true
			health["current_task"] = task.ID
		} else {
			health["updating"] = false
		}
	}
	c.JSON(200, health)
}

// getResults 查询单只股票的分析结果历史
func (s *Server) getResults(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(400, ErrorResponse{Error: "bad_request", Message: "stock code is required"})
		return
	}

	query, ok := s.parseQuery(c)
	if !ok {
		return
	}
	query.Codes = []string{code}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	results, err := s.store.LoadResults(ctx, query)
	if err != nil {
		s.log.WithError(err).Errorf("查询股票 %s 的分析结果失败", code)
		c.JSON(500, ErrorResponse{Error: "internal_error", Message: "failed to load results"})
		return
	}
	if len(results) == 0 {
		c.JSON(404, ErrorResponse{Error: "not_found", Message: "no analysis results for " + code})
		return
	}
	c.JSON(200, results)
}

// listResults 按条件查询分析结果
func (s *Server) listResults(c *gin.Context) {
	query, ok := s.parseQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	results, err := s.store.LoadResults(ctx, query)
	if err != nil {
		s.log.WithError(err).Error("查询分析结果失败")
		c.JSON(500, ErrorResponse{Error: "internal_error", Message: "failed to load results"})
		return
	}
	c.JSON(200, gin.H{"count": len(results), "results": results})
}

// listPerformance 按条件查询策略绩效记录
func (s *Server) listPerformance(c *gin.Context) {
	query, ok := s.parseQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	records, err := s.store.LoadPerformance(ctx, query)
	if err != nil {
		s.log.WithError(err).Error("查询绩效记录失败")
		c.JSON(500, ErrorResponse{Error: "internal_error", Message: "failed to load performance records"})
		return
	}
	c.JSON(200, gin.H{"count": len(records), "records": records})
}

// triggerUpdate 手动触发一轮更新，更新在后台异步执行。
func (s *Server) triggerUpdate(c *gin.Context) {
	if s.updater == nil {
		c.JSON(503, ErrorResponse{Error: "unavailable", Message: "updater is not configured"})
		return
	}

	type runResult struct {
		task *updater.Task
		err  error
	}
	resCh := make(chan runResult, 1)
	go func() {
		task, err := s.updater.RunOnce(context.Background(), "manual")
		resCh <- runResult{task: task, err: err}
	}()

	// 短暂等待，快速失败（如并发冲突）能同步返回；长任务转入后台
	select {
	case res := <-resCh:
		if res.err != nil {
			if errors.Is(res.err, updater.ErrUpdateInProgress) {
				c.JSON(409, ErrorResponse{Error: "conflict", Message: "another update is already in progress"})
				return
			}
			c.JSON(500, ErrorResponse{Error: "internal_error", Message: res.err.Error()})
			return
		}
		c.JSON(202, res.task)
	case <-time.After(200 * time.Millisecond):
		if current := s.updater.CurrentTask(); current != nil {
			c.JSON(202, current)
			return
		}
		c.JSON(202, gin.H{"status": "started"})
	}
}

// updateStatus 返回执行中的任务和最近的任务记录
func (s *Server) updateStatus(c *gin.Context) {
	if s.updater == nil {
		c.JSON(503, ErrorResponse{Error: "unavailable", Message: "updater is not configured"})
		return
	}
	c.JSON(200, gin.H{
		"current": s.updater.CurrentTask(),
		"recent":  s.updater.Tasks(),
	})
}

// parseQuery 从请求参数构造存储查询，参数非法时直接响应400。
func (s *Server) parseQuery(c *gin.Context) (core.Query, bool) {
	var query core.Query
	query.Strategy = c.Query("strategy")

	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(400, ErrorResponse{Error: "bad_request", Message: "invalid start date: " + raw})
			return query, false
		}
		query.StartTime = t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(400, ErrorResponse{Error: "bad_request", Message: "invalid end date: " + raw})
			return query, false
		}
		query.EndTime = t
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(400, ErrorResponse{Error: "bad_request", Message: "invalid limit: " + raw})
			return query, false
		}
		query.Limit = n
	}
	return query, true
}
