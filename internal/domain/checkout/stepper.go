package checkout

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/geraiakik/checkout-gateway/internal/kvstore"
)

// State is the persisted checkout position: step index plus draft.
type State struct {
	Step  Step  `json:"step"`
	Draft Draft `json:"draft"`
}

// Stepper is the three-state machine gating checkout progression. Moves are
// clamped: Prev at the first step and Next at the last step are no-ops, not
// errors. Guards on required fields belong to the caller; the stepper only
// owns position and draft.
type Stepper struct {
	mu  sync.Mutex
	kv  kvstore.Store
	key string
}

// NewStepper returns a stepper persisting under the given storage key.
func NewStepper(kv kvstore.Store, key string) *Stepper {
	return &Stepper{kv: kv, key: key}
}

// State returns the persisted position, defaulting to the cart-review step
// with an empty draft when storage has nothing usable.
func (s *Stepper) State(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

func (s *Stepper) read(ctx context.Context) State {
	var st State
	if err := kvstore.GetJSON(ctx, s.kv, s.key, &st); err != nil {
		return State{Step: StepCartReview}
	}
	if st.Step < StepCartReview || st.Step > StepConfirmAndPay {
		return State{Step: StepCartReview}
	}
	return st
}

func (s *Stepper) write(ctx context.Context, st State) error {
	if err := kvstore.SetJSON(ctx, s.kv, s.key, st); err != nil {
		return errors.Wrap(err, "persist checkout state")
	}
	return nil
}

// Next advances one step, clamped at the confirmation step.
func (s *Stepper) Next(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read(ctx)
	if st.Step < StepConfirmAndPay {
		st.Step++
		if err := s.write(ctx, st); err != nil {
			return State{}, err
		}
	}
	return st, nil
}

// Prev moves back one step, clamped at cart review. Never blocked by
// validation.
func (s *Stepper) Prev(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read(ctx)
	if st.Step > StepCartReview {
		st.Step--
		if err := s.write(ctx, st); err != nil {
			return State{}, err
		}
	}
	return st, nil
}

// Reset returns to cart review, keeping the draft so selections survive a
// restart of the flow.
func (s *Stepper) Reset(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read(ctx)
	st.Step = StepCartReview
	if err := s.write(ctx, st); err != nil {
		return State{}, err
	}
	return st, nil
}

// UpdateDraft applies mutate to the persisted draft without moving the
// step.
func (s *Stepper) UpdateDraft(ctx context.Context, mutate func(*Draft)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read(ctx)
	mutate(&st.Draft)
	if err := s.write(ctx, st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Clear removes the persisted checkout state entirely. The next State call
// starts over at cart review with an empty draft.
func (s *Stepper) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, s.key); err != nil {
		return errors.Wrap(err, "clear checkout state")
	}
	return nil
}
