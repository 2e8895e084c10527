package players

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggoodman/dungeons-and-money/events"
	"github.com/ggoodman/dungeons-and-money/internal/logctx"
	"github.com/ggoodman/dungeons-and-money/playerstate"
)

// DefaultMaxSwordLevel is the highest sword level ApplyStrict accepts.
const DefaultMaxSwordLevel = 20

// Summary describes the outcome of applying one state payload.
type Summary struct {
	PlayerID   string                `json:"player_id"`
	Policy     string                `json:"policy"`
	SwordLevel uint32                `json:"sword_level"`
	Equipment  playerstate.Equipment `json:"equipment"`
	Location   playerstate.Location  `json:"location"`
	Role       Role                  `json:"role"`
	Gold       uint64                `json:"gold"`
	// Alerts lists the privileged side effects the payload triggered.
	Alerts []string `json:"alerts,omitempty"`
}

// Service applies bound player state to accounts.
type Service struct {
	store         Store
	events        events.Broker
	log           *slog.Logger
	maxSwordLevel uint32
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes security events to b.
func WithEvents(b events.Broker) Option {
	return func(s *Service) { s.events = b }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMaxSwordLevel overrides DefaultMaxSwordLevel.
func WithMaxSwordLevel(n uint32) Option {
	return func(s *Service) { s.maxSwordLevel = n }
}

// WithClock sets the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		log:           slog.Default(),
		maxSwordLevel: DefaultMaxSwordLevel,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyPermissive records equipment and location and then honours the
// extension slots exactly as the client supplied them.
func (s *Service) ApplyPermissive(ctx context.Context, playerID string, st playerstate.PermissiveState) (*Summary, error) {
	policy := playerstate.Permissive.String()
	ctx = logctx.WithPlayerData(ctx, &logctx.PlayerData{PlayerID: playerID, Policy: policy})

	var (
		alerts  []string
		pending []events.Event
	)
	acct, err := s.store.Update(ctx, playerID, func(a *Account) error {
		alerts, pending = nil, nil

		a.Equipment = st.Equipment
		a.Location = st.Location

		if st.IsAdmin != nil && *st.IsAdmin {
			a.Role = RoleAdmin
			alerts = append(alerts, "Attacker successfully escalated privileges to ADMIN!")
			pending = append(pending, s.event(events.KindPrivilegeEscalation, playerID, policy, "role set to admin from client payload"))
		}
		if st.Gold != nil {
			a.Gold += uint64(*st.Gold)
			alerts = append(alerts, fmt.Sprintf("Attacker granted themselves %d gold!", *st.Gold))
			pending = append(pending, s.event(events.KindCurrencyCredit, playerID, policy, fmt.Sprintf("credited %d gold from client payload", *st.Gold)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update account %s: %w", playerID, err)
	}

	for _, ev := range pending {
		s.log.WarnContext(ctx, "gadget."+string(ev.Kind), slog.String("detail", ev.Detail))
		s.publish(ctx, ev)
	}
	s.log.InfoContext(ctx, "state.apply.ok", slog.Uint64("sword_level", uint64(st.Equipment.SwordLevel())))

	return summarize(acct, policy, alerts), nil
}

// ApplyStrict validates item levels and records equipment and location.
// Nothing else about the account can change through this path.
func (s *Service) ApplyStrict(ctx context.Context, playerID string, st playerstate.StrictState) (*Summary, error) {
	policy := playerstate.Strict.String()
	ctx = logctx.WithPlayerData(ctx, &logctx.PlayerData{PlayerID: playerID, Policy: policy})

	if lvl := st.Equipment.SwordLevel(); lvl > s.maxSwordLevel {
		s.log.WarnContext(ctx, "state.validate.fail", slog.Uint64("sword_level", uint64(lvl)))
		return nil, &ValidationError{
			Path:   fmt.Sprintf("equipment.items[%d]", playerstate.SwordSlot),
			Reason: fmt.Sprintf("Sword level cannot exceed %d", s.maxSwordLevel),
		}
	}

	acct, err := s.store.Update(ctx, playerID, func(a *Account) error {
		a.Equipment = st.Equipment
		a.Location = st.Location
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update account %s: %w", playerID, err)
	}
	s.log.InfoContext(ctx, "state.apply.ok", slog.Uint64("sword_level", uint64(st.Equipment.SwordLevel())))

	return summarize(acct, policy, nil), nil
}

// Account returns the current account for playerID or ErrNotFound.
func (s *Service) Account(ctx context.Context, playerID string) (*Account, error) {
	acct, err := s.store.Load(ctx, playerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load account %s: %w", playerID, err)
	}
	return acct, nil
}

// RecordRejection publishes a payload_rejected event when err shows that a
// payload was refused for carrying undeclared fields. Other errors are
// ignored.
func (s *Service) RecordRejection(ctx context.Context, playerID string, policy playerstate.Policy, err error) {
	var be *playerstate.BindError
	if !errors.As(err, &be) || be.Kind != playerstate.UnknownField {
		return
	}
	ev := s.event(events.KindPayloadRejected, playerID, policy.String(), fmt.Sprintf("rejected undeclared field `%s`", be.Path))
	s.log.InfoContext(ctx, "gadget.blocked", slog.String("field", be.Path))
	s.publish(ctx, ev)
}

func (s *Service) event(kind events.Kind, playerID, policy, detail string) events.Event {
	return events.Event{
		Kind:     kind,
		PlayerID: playerID,
		Policy:   policy,
		Detail:   detail,
		At:       s.now().UTC(),
	}
}

// publish logs failures and returns. Callers invoke it after the account
// change is committed.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Publish(ctx, ev); err != nil {
		s.log.ErrorContext(ctx, "events.publish.fail", slog.String("kind", string(ev.Kind)), slog.String("err", err.Error()))
	}
}

func summarize(a *Account, policy string, alerts []string) *Summary {
	return &Summary{
		PlayerID:   a.PlayerID,
		Policy:     policy,
		SwordLevel: a.Equipment.SwordLevel(),
		Equipment:  a.Equipment,
		Location:   a.Location,
		Role:       a.Role,
		Gold:       a.Gold,
		Alerts:     alerts,
	}
}
