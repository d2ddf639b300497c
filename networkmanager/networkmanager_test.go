package networkmanager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"querycache/networkmanager"
)

func TestSetOnlineNotifiesSubscribersOnlyOnTransition(t *testing.T) {
	m := networkmanager.New(true)

	var calls []bool
	unsub := m.OnChange(func(online bool) { calls = append(calls, online) })
	defer unsub()

	m.SetOnline(true) // no-op, same state
	m.SetOnline(false)
	m.SetOnline(false) // no-op, same state
	m.SetOnline(true)

	assert.Equal(t, []bool{false, true}, calls)
	assert.True(t, m.IsOnline())
}

func TestUnsubscribeStopsFurtherNotifications(t *testing.T) {
	m := networkmanager.New(true)

	count := 0
	unsub := m.OnChange(func(bool) { count++ })
	m.SetOnline(false)
	unsub()
	m.SetOnline(true)

	assert.Equal(t, 1, count)
}
