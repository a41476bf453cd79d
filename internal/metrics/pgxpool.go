package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPgxPoolMetrics exposes the pgx pool's connection counters as
// gauges, sampled from pool.Stat at scrape time. An exhausted pool shows
// up here as acquired pinned at max while API latency climbs.
func RegisterPgxPoolMetrics(pool *pgxpool.Pool) {
	gauges := []struct {
		name string
		help string
		stat func(*pgxpool.Stat) int32
	}{
		{"db_pool_acquired_conns", "Connections currently checked out of the pool", func(s *pgxpool.Stat) int32 { return s.AcquiredConns() }},
		{"db_pool_idle_conns", "Connections sitting idle in the pool", func(s *pgxpool.Stat) int32 { return s.IdleConns() }},
		{"db_pool_total_conns", "Open connections, acquired plus idle", func(s *pgxpool.Stat) int32 { return s.TotalConns() }},
		{"db_pool_max_conns", "Configured pool ceiling", func(s *pgxpool.Stat) int32 { return s.MaxConns() }},
	}
	for _, g := range gauges {
		stat := g.stat
		prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: g.name,
			Help: g.help,
		}, func() float64 {
			return float64(stat(pool.Stat()))
		}))
	}
}
