package escalation

import (
	"sync"
	"time"

	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/scheduler"

	"go.uber.org/zap"
)

// Hop 自动升级的一跳
type Hop int

const (
	// HopFamily caregiver -> family，在 caregiverResponseTimeout 后触发
	HopFamily Hop = iota + 1
	// HopEmergency family -> emergency，在 caregiverResponseTimeout+familyResponseTimeout 后触发
	HopEmergency
)

// From 该跳要求的起始层级
func (h Hop) From() models.AlertLevel {
	if h == HopEmergency {
		return models.AlertLevelFamily
	}
	return models.AlertLevelCaregiver
}

func (h Hop) String() string {
	switch h {
	case HopFamily:
		return "family"
	case HopEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Step 计划中的一次升级
type Step struct {
	Hop    Hop
	FireAt time.Time
}

// Plan 根据报警当前状态和配置计算待执行的升级（时间相对报警创建时间，
// 已升级到家属的报警第二跳不早于 escalatedAt+familyResponseTimeout）
// 没有联系人、caregiverResponseTimeout<=0 或报警已结束时不升级
func Plan(alert *models.EmergencyAlert, s models.EmergencySettings) []Step {
	if alert == nil || alert.IsResolved() {
		return nil
	}
	if len(s.EmergencyContacts) == 0 || s.CaregiverResponseTimeout <= 0 {
		return nil
	}

	var steps []Step
	hop1At := alert.Timestamp.Add(s.CaregiverTimeout())
	untouched := alert.Status == models.AlertStatusActive && alert.Level == models.AlertLevelCaregiver
	if untouched {
		steps = append(steps, Step{Hop: HopFamily, FireAt: hop1At})
	}

	if s.FamilyResponseTimeout > 0 {
		atFamily := alert.Status == models.AlertStatusEscalated && alert.Level == models.AlertLevelFamily
		if untouched || atFamily {
			hop2At := hop1At.Add(s.FamilyTimeout())
			// 升级到家属后至少给家属一个完整的响应时间
			if atFamily && alert.EscalatedAt != nil {
				if floor := alert.EscalatedAt.Add(s.FamilyTimeout()); floor.After(hop2At) {
					hop2At = floor
				}
			}
			steps = append(steps, Step{Hop: HopEmergency, FireAt: hop2At})
		}
	}
	return steps
}

// FireFunc 定时到期回调；回调方需重新读取报警与配置后再决定是否升级
type FireFunc func(alertID string, hop Hop)

// chain 单个报警的升级计划：同一时间只挂一个定时器，
// 上一跳回调返回后才设置下一跳，保证两跳按顺序执行
type chain struct {
	steps []Step
	next  int
	task  scheduler.Task
}

// Escalator 每个报警的升级定时器管理
type Escalator struct {
	sched  scheduler.Scheduler
	fire   FireFunc
	logger *zap.Logger

	mu     sync.Mutex
	chains map[string]*chain
}

// NewEscalator 创建升级定时器管理
func NewEscalator(sched scheduler.Scheduler, fire FireFunc, logger *zap.Logger) *Escalator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Escalator{
		sched:  sched,
		fire:   fire,
		logger: logger,
		chains: make(map[string]*chain),
	}
}

// Arm 按 Plan 为报警设置升级，已过期的步骤立即触发；返回计划的步骤数
// 同一报警已有的计划会先被取消
func (e *Escalator) Arm(alert *models.EmergencyAlert, s models.EmergencySettings) int {
	if alert == nil {
		return 0
	}
	steps := Plan(alert, s)
	e.Cancel(alert.ID)
	if len(steps) == 0 {
		return 0
	}

	c := &chain{steps: steps}
	e.mu.Lock()
	e.chains[alert.ID] = c
	e.scheduleLocked(alert.ID, c)
	e.mu.Unlock()
	return len(steps)
}

// scheduleLocked 为 chain 的下一步设置定时器；调用方必须持有 mu
func (e *Escalator) scheduleLocked(alertID string, c *chain) {
	step := c.steps[c.next]
	delay := step.FireAt.Sub(e.sched.Now())
	if delay < 0 {
		delay = 0
	}
	c.task = e.sched.AfterFunc(delay, func() { e.run(alertID, c) })

	e.logger.Debug("Escalation armed",
		zap.String("alert_id", alertID),
		zap.String("hop", step.Hop.String()),
		zap.Duration("delay", delay),
	)
}

func (e *Escalator) run(alertID string, c *chain) {
	e.mu.Lock()
	if e.chains[alertID] != c || c.next >= len(c.steps) {
		// 已取消或已被重新设置
		e.mu.Unlock()
		return
	}
	step := c.steps[c.next]
	c.next++
	c.task = nil
	e.mu.Unlock()

	e.fire(alertID, step.Hop)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chains[alertID] != c {
		return
	}
	if c.next >= len(c.steps) {
		delete(e.chains, alertID)
		return
	}
	e.scheduleLocked(alertID, c)
}

// Cancel 取消报警尚未执行的升级，返回取消的步骤数
func (e *Escalator) Cancel(alertID string) int {
	e.mu.Lock()
	c, ok := e.chains[alertID]
	delete(e.chains, alertID)
	e.mu.Unlock()

	if !ok {
		return 0
	}
	if c.task != nil {
		c.task.Cancel()
	}
	return len(c.steps) - c.next
}

// NextFireAt 报警下一次自动升级时间（供界面倒计时）
func (e *Escalator) NextFireAt(alertID string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.chains[alertID]
	if !ok || c.next >= len(c.steps) {
		return time.Time{}, false
	}
	return c.steps[c.next].FireAt, true
}

// Pending 全部尚未执行的升级步骤数
func (e *Escalator) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.chains {
		n += len(c.steps) - c.next
	}
	return n
}

// Stop 取消全部升级
func (e *Escalator) Stop() {
	e.mu.Lock()
	chains := e.chains
	e.chains = make(map[string]*chain)
	e.mu.Unlock()

	for _, c := range chains {
		if c.task != nil {
			c.task.Cancel()
		}
	}
}
