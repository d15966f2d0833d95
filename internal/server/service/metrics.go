package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	keysIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filegate_keys_issued_total",
		Help: "Access keys issued.",
	})
	keyCollisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filegate_key_collisions_total",
			Help: "Generated keys rejected by the index as duplicates.",
		},
		[]string{"kind"},
	)
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filegate_uploads_total",
			Help: "Upload attempts by outcome.",
		},
		[]string{"result"},
	)
	orphanedBlobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filegate_orphaned_blobs_total",
		Help: "Blobs stored in the sink whose metadata insert failed.",
	})
	revocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filegate_revocations_total",
			Help: "Successful admin revocations by kind.",
		},
		[]string{"kind"},
	)
)
