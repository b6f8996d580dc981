package adapter

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// ReferenceGenerator 生成 MC-<毫秒时间戳 base36>-<4 位随机 base36> 形式的预约编号
type ReferenceGenerator struct {
	now func() time.Time
}

func NewReferenceGenerator(now func() time.Time) *ReferenceGenerator {
	if now == nil {
		now = time.Now
	}
	return &ReferenceGenerator{now: now}
}

func (g *ReferenceGenerator) NewReference() string {
	ts := strconv.FormatInt(g.now().UnixMilli(), 36)
	var suffix [4]byte
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return strings.ToUpper("MC-" + ts + "-" + string(suffix[:]))
}
