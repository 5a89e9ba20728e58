package engine

import (
	"math"
	"sync"

	"medroute/internal/geo"
)

// BuildMatrix computes the node-to-node travel time matrix in whole
// minutes. Travel time is great-circle distance over the configured
// average speed, rounded up (ceiling keeps schedules conservative: a
// feasible paper route stays feasible on the road). The per-stop service
// time is folded into the origin side of each arc when the origin is a
// patient node, so schedule propagation sees it exactly once per visit.
// The diagonal is zero.
//
// Rows are independent and built by a bounded worker pool; the matrix is
// read-only after this returns.
func BuildMatrix(nodes []Node, cfg Config) [][]int {
	n := len(nodes)
	travel := make([][]int, n)

	workers := cfg.MatrixWorkers
	if workers <= 0 {
		workers = 8
	}
	if workers > n {
		workers = n
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			row := make([]int, n)
			service := 0
			if nodes[i].Kind != NodeDepot {
				service = nodes[i].ServiceMin
			}
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				row[j] = travelMinutes(nodes[i].Loc, nodes[j].Loc, cfg.SpeedKmh) + service
			}
			travel[i] = row
		}(i)
	}
	wg.Wait()
	return travel
}

func travelMinutes(a, b geo.Point, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = 55
	}
	km := geo.HaversineKm(a, b)
	return int(math.Ceil(km / speedKmh * 60))
}
