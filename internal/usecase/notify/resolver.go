package notify

import (
	"errors"

	"xtrack-client/internal/domain"
)

var (
	// ErrNoTelegramTarget возвращается, когда запрошена доставка в Telegram,
	// а привязанных чатов нет. Вызывающий обязан предложить привязку.
	ErrNoTelegramTarget = errors.New("нет привязанного Telegram-чата")

	// ErrNoTargetSelected возвращается, когда чаты привязаны, но ни один
	// не выбран.
	ErrNoTargetSelected = errors.New("не выбран получатель в Telegram")
)

// Preferences — желаемые каналы доставки для задачи.
type Preferences struct {
	Email    bool
	Telegram bool
}

// Resolution — итоговые идентификаторы доставки, готовые к отправке.
// Email всегда адрес аутентифицированного пользователя: произвольный
// адрес со стороны вызывающего сюда не попадает.
type Resolution struct {
	Email     *string
	TargetIDs []int64
}

// Resolve превращает выбор каналов и привязанные места доставки в итоговый
// набор идентификаторов. Выбор фильтруется по реально привязанным
// Telegram-чатам: снятые привязки молча выпадают.
func Resolve(prefs Preferences, selection []int64, targets []domain.NotificationTarget, userEmail string) (Resolution, error) {
	var result Resolution

	if prefs.Telegram {
		bound := make(map[int64]struct{})
		for _, target := range targets {
			if target.Channel == domain.ChannelTelegram {
				bound[target.ID] = struct{}{}
			}
		}
		if len(bound) == 0 {
			return Resolution{}, ErrNoTelegramTarget
		}
		var ids []int64
		for _, id := range selection {
			if _, ok := bound[id]; ok {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return Resolution{}, ErrNoTargetSelected
		}
		result.TargetIDs = ids
	}

	if prefs.Email {
		email := userEmail
		result.Email = &email
	}

	return result, nil
}

// DefaultSelection возвращает идентификатор Telegram-чата по умолчанию,
// если такой есть среди привязанных.
func DefaultSelection(targets []domain.NotificationTarget) (int64, bool) {
	for _, target := range targets {
		if target.Channel == domain.ChannelTelegram && target.IsDefault {
			return target.ID, true
		}
	}
	return 0, false
}
