package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

func TestGuestID(t *testing.T) {
	assert.Equal(t, "guest:alice", domain.GuestID("alice"))
	assert.Equal(t, "guest:alice", domain.GuestID("guest:alice"))
	assert.True(t, domain.IsGuestID(domain.GuestID("s-1")))
	assert.False(t, domain.IsGuestID("alice"))
}
