package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealth_SetHealthy(t *testing.T) {
	h := NewHealth()

	h.SetHealthy(ComponentStore, "listed due posts")

	status := h.GetStatus(ComponentStore)
	assert.True(t, status.Healthy)
	assert.Equal(t, "listed due posts", status.Message)
	assert.Nil(t, status.LastError)
	assert.WithinDuration(t, time.Now(), status.LastCheck, time.Second)
	assert.WithinDuration(t, time.Now(), status.LastSuccess, time.Second)
}

func TestHealth_SetUnhealthy(t *testing.T) {
	h := NewHealth()

	h.SetHealthy(ComponentPublisher, "ok")
	lastSuccess := h.GetStatus(ComponentPublisher).LastSuccess

	err := assert.AnError
	h.SetUnhealthy(ComponentPublisher, err)

	status := h.GetStatus(ComponentPublisher)
	assert.False(t, status.Healthy)
	assert.Equal(t, err, status.LastError)
	assert.Equal(t, err.Error(), status.Message)
	assert.Equal(t, lastSuccess, status.LastSuccess)
}

func TestHealth_GetStatus_NotFound(t *testing.T) {
	h := NewHealth()
	assert.Nil(t, h.GetStatus("nonexistent"))
}

func TestHealth_GetStatus_ReturnsCopy(t *testing.T) {
	h := NewHealth()
	h.SetHealthy(ComponentStore, "ok")

	h.GetStatus(ComponentStore).Healthy = false
	assert.True(t, h.GetStatus(ComponentStore).Healthy)
}

func TestHealth_IsOverallHealthy(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		h := NewHealth()
		h.SetHealthy(ComponentPublisher, "ok")
		h.SetHealthy(ComponentStore, "ok")

		assert.True(t, h.IsOverallHealthy())
		assert.Empty(t, h.Unhealthy())
	})

	t.Run("some unhealthy", func(t *testing.T) {
		h := NewHealth()
		h.SetUnhealthy(ComponentStore, assert.AnError)
		h.SetHealthy(ComponentDispatch, "ok")
		h.SetUnhealthy(ComponentPublisher, assert.AnError)

		assert.False(t, h.IsOverallHealthy())
		assert.Equal(t, []string{ComponentPublisher, ComponentStore}, h.Unhealthy())
	})

	t.Run("empty", func(t *testing.T) {
		h := NewHealth()
		assert.True(t, h.IsOverallHealthy())
	})
}
