package settings

import (
	"sort"

	"wisefido-emergency/internal/models"
)

// Direction 联系人移动方向
type Direction int

const (
	MoveUp Direction = iota
	MoveDown
)

// SortContacts 按优先级升序排序（稳定排序，同优先级保持原顺序）
func SortContacts(contacts []models.EmergencyContact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].Priority < contacts[j].Priority
	})
}

// Resequence 将优先级重排为连续的 1..N（按当前顺序）
func Resequence(contacts []models.EmergencyContact) {
	for i := range contacts {
		contacts[i].Priority = i + 1
	}
}

// NextTierContact 查找下一层级的通知联系人
// caregiver -> 优先级 2 且开启升级通知；family -> 优先级 3 且开启升级通知
func NextTierContact(contacts []models.EmergencyContact, current models.AlertLevel) (models.EmergencyContact, bool) {
	next, ok := current.Next()
	if !ok {
		return models.EmergencyContact{}, false
	}
	want := next.ContactPriority()

	sorted := append([]models.EmergencyContact(nil), contacts...)
	SortContacts(sorted)
	for _, c := range sorted {
		if c.Priority == want && c.NotifyOnEscalation {
			return c, true
		}
	}
	return models.EmergencyContact{}, false
}

// TierContacts 返回指定层级的全部通知联系人
func TierContacts(contacts []models.EmergencyContact, level models.AlertLevel) []models.EmergencyContact {
	want := level.ContactPriority()
	var out []models.EmergencyContact
	for _, c := range contacts {
		if c.Priority == want && (level == models.AlertLevelCaregiver || c.NotifyOnEscalation) {
			out = append(out, c)
		}
	}
	return out
}
