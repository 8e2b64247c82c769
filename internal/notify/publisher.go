/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package notify announces closed ledger batches to downstream
// consumers (dashboard, search indexer) over AMQP.
package notify

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/credledger/credledger/internal/domain/model"
)

const DefaultExchange = "ledger.batches"

// Publisher publishes batch-close announcements to a fanout exchange.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *log.Logger
}

// BatchAnnouncement is the JSON body published on batch close.
type BatchAnnouncement struct {
	BatchID      int64     `json:"batch_id"`
	MerkleRoot   string    `json:"merkle_root"`
	PreviousRoot string    `json:"previous_root"`
	Entries      int       `json:"entries"`
	ClosedAt     time.Time `json:"closed_at"`
}

// Dial connects to the broker with exponential backoff and declares
// the fanout exchange.
func Dial(url, exchange string, logger *log.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = log.Default()
	}

	var conn *amqp.Connection
	var err error
	maxRetries := 7
	waitTime := 1 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Printf("AMQP attempt %d failed: %v. Retrying in %v...", i+1, err, waitTime)
		time.Sleep(waitTime)
		waitTime = time.Duration(math.Pow(2, float64(i+1))) * time.Second
	}
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

// BatchClosed implements ledger.BatchSink.
func (p *Publisher) BatchClosed(ctx context.Context, batch *model.Batch, entryCount int) error {
	body, err := json.Marshal(BatchAnnouncement{
		BatchID:      batch.ID,
		MerkleRoot:   hex.EncodeToString(batch.MerkleRoot),
		PreviousRoot: hex.EncodeToString(batch.PreviousRoot),
		Entries:      entryCount,
		ClosedAt:     batch.ClosedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}
	err = p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		"",         // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("publish announcement: %w", err)
	}
	return nil
}

// Close tears down the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
