package scheduler

import (
	"errors"
	"time"
)

var ErrInvalidArgument = errors.New("invalid argument")

type Algorithm string

const (
	AlgorithmGenetic  Algorithm = "genetic"
	AlgorithmGreyWolf Algorithm = "grey_wolf"
	AlgorithmRedDeer  Algorithm = "red_deer"
)

var Algorithms = []Algorithm{AlgorithmGenetic, AlgorithmGreyWolf, AlgorithmRedDeer}

// SelectionPolicy 红鹿算法下一代母鹿的选择策略
type SelectionPolicy string

const (
	SelectionTruncation SelectionPolicy = "truncation"
	SelectionTournament SelectionPolicy = "tournament"
)

// 搜索参数
type Parameters struct {
	PopulationSize int    `json:"populationSize"` // 种群大小（灰狼算法中为狼的数量）
	Iterations     int    `json:"iterations"`     // 迭代次数
	Seed           uint64 `json:"seed"`           // 随机种子

	// 遗传算法
	EliteCount   int     `json:"eliteCount,omitempty"`   // 精英数量
	MutationRate float64 `json:"mutationRate,omitempty"` // 子代发生交换变异的概率

	// 红鹿算法
	NumMales       int             `json:"numMales,omitempty"`
	Alpha          float64         `json:"alpha,omitempty"` // 首领与自己后宫交配的比例
	Beta           float64         `json:"beta,omitempty"`  // 首领与其他后宫交配的比例
	Gamma          float64         `json:"gamma,omitempty"` // 雄鹿中成为首领的比例
	Selection      SelectionPolicy `json:"selection,omitempty"`
	TournamentSize int             `json:"tournamentSize,omitempty"`
}

// Result 为一次搜索的输出
type Result struct {
	Algorithm  Algorithm     `json:"algorithm"`
	Assignment []int         `json:"assignment"`
	Fitness    float64       `json:"fitness"`
	Metrics    Metrics       `json:"metrics"`
	History    []float64     `json:"history"` // 每次迭代后的历史最优适应度
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
}
