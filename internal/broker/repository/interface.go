package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	brokerDomain "github.com/coregate/gateway/internal/broker/domain"
)

// Repository is the persistence contract internal/broker.Engine depends on
// through its own narrower StateStore interface; this is the full surface
// both PostgreSQL and MySQL variants implement.
type Repository interface {
	Create(ctx context.Context, state *brokerDomain.BrokerState) error
	GetByID(ctx context.Context, id uuid.UUID) (*brokerDomain.BrokerState, error)
	Update(ctx context.Context, state *brokerDomain.BrokerState) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	_ Repository = (*PostgreSQLBrokerStateRepository)(nil)
	_ Repository = (*MySQLBrokerStateRepository)(nil)
)
