package config

import (
	"log"
	"time"
)

// Config captures the tunables required to start the credential ledger server.
type Config struct {
	Addr            string
	DBPath          string
	IssuerKeyPath   string
	BatchMaxEntries int
	BatchMaxAge     time.Duration
	CheckpointBatch int64
	AMQPURL         string
	AMQPExchange    string
	Logger          *log.Logger
}
