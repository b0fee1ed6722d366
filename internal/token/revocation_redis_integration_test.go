//go:build integration

package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shiftgate/pkg/testutil/containers"
)

type RedisRevocationSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	list  *RedisRevocationList
}

func TestRedisRevocationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisRevocationSuite))
}

func (s *RedisRevocationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.list = NewRedisRevocationList(s.redis.Client)
}

func (s *RedisRevocationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisRevocationSuite) TestRevokedTokenIsReported() {
	s.Require().NoError(s.list.Revoke(s.ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err := s.list.IsRevoked(s.ctx, "jti-1")
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *RedisRevocationSuite) TestUnknownTokenIsNotRevoked() {
	revoked, err := s.list.IsRevoked(s.ctx, "never-revoked")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *RedisRevocationSuite) TestEmptyTokenIDIsNeverRevoked() {
	revoked, err := s.list.IsRevoked(s.ctx, "")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *RedisRevocationSuite) TestExpiredRevocationIsNotStored() {
	s.Require().NoError(s.list.Revoke(s.ctx, "jti-old", time.Now().Add(-time.Minute)))

	revoked, err := s.list.IsRevoked(s.ctx, "jti-old")
	s.Require().NoError(err)
	s.False(revoked)
}
