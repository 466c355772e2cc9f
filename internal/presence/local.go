package presence

import (
	"fmt"
	"math/rand/v2"

	"github.com/iudanet/mathroom/internal/models"
	"github.com/iudanet/mathroom/internal/room"
)

const (
	// ColorGroups количество цветовых групп участников
	ColorGroups = 40
	// UserIDLength длина короткого идентификатора пользователя
	UserIDLength = 8
)

// ColorGroup возвращает основной и светлый цвет группы n.
// Оттенки равномерно распределены по кругу.
func ColorGroup(n int) (color, light string) {
	n = ((n % ColorGroups) + ColorGroups) % ColorGroups
	hue := n * 360 / ColorGroups
	return fmt.Sprintf("hsl(%d, 90%%, 70%%)", hue), fmt.Sprintf("hsl(%d, 80%%, 90%%)", hue)
}

// NewLocal создает presence для нового участника со случайным цветом
// и коротким идентификатором пользователя.
func NewLocal(peerID, label string) models.PeerPresence {
	color, light := ColorGroup(rand.IntN(ColorGroups))
	return models.PeerPresence{
		PeerID: peerID,
		UserID: room.NewID(UserIDLength).String(),
		Label:  label,
		Color:  color,
		Light:  light,
	}
}
