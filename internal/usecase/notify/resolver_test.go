package notify

import (
	"errors"
	"testing"

	"xtrack-client/internal/domain"
)

var boundTargets = []domain.NotificationTarget{
	{ID: 11, Channel: domain.ChannelTelegram, Destination: "-100200", IsDefault: true},
	{ID: 12, Channel: domain.ChannelTelegram, Destination: "-100300"},
}

func TestResolveNoTelegramTargetBound(t *testing.T) {
	_, err := Resolve(Preferences{Telegram: true}, []int64{11}, nil, "user@example.com")
	if !errors.Is(err, ErrNoTelegramTarget) {
		t.Fatalf("ожидали ErrNoTelegramTarget, получили %v", err)
	}
}

func TestResolveNoTargetSelected(t *testing.T) {
	_, err := Resolve(Preferences{Telegram: true}, nil, boundTargets, "user@example.com")
	if !errors.Is(err, ErrNoTargetSelected) {
		t.Fatalf("ожидали ErrNoTargetSelected, получили %v", err)
	}
}

func TestResolveUnknownSelectionFiltered(t *testing.T) {
	_, err := Resolve(Preferences{Telegram: true}, []int64{99}, boundTargets, "user@example.com")
	if !errors.Is(err, ErrNoTargetSelected) {
		t.Fatalf("выбор из одних снятых привязок равен пустому, получили %v", err)
	}
}

func TestResolveSingleTarget(t *testing.T) {
	result, err := Resolve(Preferences{Telegram: true}, []int64{12}, boundTargets, "user@example.com")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(result.TargetIDs) != 1 || result.TargetIDs[0] != 12 {
		t.Fatalf("ожидали ровно [12], получили %v", result.TargetIDs)
	}
	if result.Email != nil {
		t.Fatalf("почта не запрошена, ожидали nil, получили %v", *result.Email)
	}
}

func TestResolveEmailIsAlwaysOwnAddress(t *testing.T) {
	result, err := Resolve(Preferences{Email: true}, nil, nil, "user@example.com")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Email == nil || *result.Email != "user@example.com" {
		t.Fatalf("ожидали собственный адрес пользователя, получили %v", result.Email)
	}
	if result.TargetIDs != nil {
		t.Fatalf("Telegram не запрошен, ожидали пустой список")
	}
}

func TestResolveNoChannels(t *testing.T) {
	result, err := Resolve(Preferences{}, []int64{11}, boundTargets, "user@example.com")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Email != nil || result.TargetIDs != nil {
		t.Fatalf("без каналов результат пуст, получили %+v", result)
	}
}

func TestDefaultSelection(t *testing.T) {
	id, ok := DefaultSelection(boundTargets)
	if !ok || id != 11 {
		t.Fatalf("ожидали чат по умолчанию 11, получили %d (%v)", id, ok)
	}
	if _, ok := DefaultSelection(nil); ok {
		t.Fatalf("без привязок нет чата по умолчанию")
	}
}
