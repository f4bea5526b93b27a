// Package sampling 从股票池中抽取分析样本，支持简单随机抽样和按市场分层抽样。
package sampling

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"stockanalyzer/pkg/core"
	"stockanalyzer/pkg/logger"
)

// Sampler 股票抽样器。给定相同的种子和输入，抽样结果可复现。
type Sampler struct {
	rng *rand.Rand
	log *logrus.Entry
}

// New 创建抽样器
func New(seed int64) *Sampler {
	return &Sampler{
		rng: rand.New(rand.NewSource(seed)),
		log: logger.WithComponent("Sampler"),
	}
}

// Random 简单随机抽样。n 大于等于池大小时返回整个池的副本。
func (s *Sampler) Random(codes []string, n int) ([]string, error) {
	if len(codes) == 0 {
		return nil, core.ErrEmptyCodes
	}
	if n <= 0 || n >= len(codes) {
		out := make([]string, len(codes))
		copy(out, codes)
		return out, nil
	}

	shuffled := make([]string, len(codes))
	copy(shuffled, codes)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	sample := shuffled[:n]
	sort.Strings(sample)
	s.log.Infof("随机抽样完成，从 %d 只股票中抽取 %d 只", len(codes), n)
	return sample, nil
}

// Stratified 按市场分层抽样，各市场的配额与其在池中的占比成正比。
// 配额按比例取整后剩余名额优先补给规模最大的层。
func (s *Sampler) Stratified(codes []string, n int) ([]string, error) {
	if len(codes) == 0 {
		return nil, core.ErrEmptyCodes
	}
	if n <= 0 || n >= len(codes) {
		out := make([]string, len(codes))
		copy(out, codes)
		return out, nil
	}

	strata := make(map[string][]string)
	for _, code := range codes {
		strata[market(code)] = append(strata[market(code)], code)
	}

	markets := make([]string, 0, len(strata))
	for m := range strata {
		markets = append(markets, m)
	}
	// 按层规模降序，规模相同时按名称保证确定性
	sort.Slice(markets, func(a, b int) bool {
		if len(strata[markets[a]]) != len(strata[markets[b]]) {
			return len(strata[markets[a]]) > len(strata[markets[b]])
		}
		return markets[a] < markets[b]
	})

	var sample []string
	remaining := n
	for i, m := range markets {
		pool := strata[m]
		quota := n * len(pool) / len(codes)
		if i == len(markets)-1 || quota > remaining {
			quota = remaining
		}
		if quota == 0 && remaining > 0 && i == 0 {
			quota = 1
		}

		picked, err := s.Random(pool, quota)
		if err != nil {
			return nil, err
		}
		if len(picked) > quota {
			picked = picked[:quota]
		}
		sample = append(sample, picked...)
		remaining -= len(picked)
		if remaining <= 0 {
			break
		}
	}

	// 取整误差留下的名额从最大层补足
	for remaining > 0 {
		filled := false
		for _, m := range markets {
			for _, code := range strata[m] {
				if !contains(sample, code) {
					sample = append(sample, code)
					remaining--
					filled = true
					break
				}
			}
			if remaining <= 0 {
				break
			}
		}
		if !filled {
			break
		}
	}

	sort.Strings(sample)
	s.log.Infof("分层抽样完成，从 %d 只股票中抽取 %d 只，共 %d 层", len(codes), len(sample), len(strata))
	return sample, nil
}

// market 从股票代码中提取市场标识，例如 "sh.600000" -> "sh"。
func market(code string) string {
	if idx := strings.Index(code, "."); idx > 0 {
		return code[:idx]
	}
	return "unknown"
}

func contains(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
