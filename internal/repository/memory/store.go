// Package memory is a map-backed implementation of the repository interfaces.
// WithinTx snapshots the store and restores it when fn fails, so services can
// be exercised with real rollback semantics without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dental-api/internal/model"
	"github.com/jwalitptl/dental-api/internal/repository"
)

type txKey struct{}

type state struct {
	materials  map[uuid.UUID]model.Material
	patients   map[uuid.UUID]model.Patient
	procedures map[uuid.UUID]model.Procedure
	outbox     []model.OutboxEvent
}

type Store struct {
	mu       sync.Mutex
	st       state
	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		st: state{
			materials:  make(map[uuid.UUID]model.Material),
			patients:   make(map[uuid.UUID]model.Patient),
			procedures: make(map[uuid.UUID]model.Procedure),
		},
		failures: make(map[string]error),
	}
}

func (s *Store) Materials() repository.MaterialRepository   { return &materialRepo{s} }
func (s *Store) Patients() repository.PatientRepository     { return &patientRepo{s} }
func (s *Store) Procedures() repository.ProcedureRepository { return &procedureRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository        { return &outboxRepo{s} }

// FailOn makes the next call to op (e.g. "patients.AddLoyaltyPoints") return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Events returns a copy of every outbox event written so far.
func (s *Store) Events() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.st.outbox...)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snap
		s.mu.Unlock()
		return err
	}
	return nil
}

// lock acquires the store lock for op. When a failure was injected for op the
// lock is released and the failure returned instead.
func (s *Store) lock(op string) error {
	s.mu.Lock()
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (st state) clone() state {
	c := state{
		materials:  make(map[uuid.UUID]model.Material, len(st.materials)),
		patients:   make(map[uuid.UUID]model.Patient, len(st.patients)),
		procedures: make(map[uuid.UUID]model.Procedure, len(st.procedures)),
		outbox:     append([]model.OutboxEvent(nil), st.outbox...),
	}
	for k, v := range st.materials {
		c.materials[k] = v
	}
	for k, v := range st.patients {
		c.patients[k] = v
	}
	for k, v := range st.procedures {
		c.procedures[k] = copyProcedure(v)
	}
	return c
}

func copyProcedure(p model.Procedure) model.Procedure {
	p.Materials = append([]model.ProcedureMaterial{}, p.Materials...)
	return p
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func now() time.Time {
	return time.Now().UTC()
}

type materialRepo struct{ s *Store }

func (r *materialRepo) Create(ctx context.Context, m *model.Material) error {
	if err := r.s.lock("materials.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt, m.UpdatedAt = now(), now()
	r.s.st.materials[m.ID] = *m
	return nil
}

func (r *materialRepo) Get(ctx context.Context, id uuid.UUID) (*model.Material, error) {
	if err := r.s.lock("materials.Get"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	m, ok := r.s.st.materials[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *materialRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Material, error) {
	if err := r.s.lock("materials.GetMany"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	var out []*model.Material
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if m, ok := r.s.st.materials[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r *materialRepo) Update(ctx context.Context, m *model.Material) error {
	if err := r.s.lock("materials.Update"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	existing, ok := r.s.st.materials[m.ID]
	if !ok {
		return repository.ErrNotFound
	}
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = now()
	r.s.st.materials[m.ID] = *m
	return nil
}

func (r *materialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.s.lock("materials.Delete"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.materials[id]; !ok {
		return repository.ErrNotFound
	}
	for _, p := range r.s.st.procedures {
		for _, item := range p.Materials {
			if item.MaterialID == id {
				return repository.ErrReferenced
			}
		}
	}
	delete(r.s.st.materials, id)
	return nil
}

func (r *materialRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.st.materials[id]
	return ok, nil
}

func (r *materialRepo) List(ctx context.Context, f *model.MaterialFilter) ([]*model.Material, error) {
	if err := r.s.lock("materials.List"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	var out []*model.Material
	for _, m := range r.s.st.materials {
		m := m
		if f != nil {
			if f.Name != "" && !containsFold(m.Name, f.Name) {
				continue
			}
			if f.Reusable != nil && m.Reusable != *f.Reusable {
				continue
			}
			if f.MaxQuantity != nil && m.Quantity > *f.MaxQuantity {
				continue
			}
			if f.MinQuantity != nil && m.Quantity <= *f.MinQuantity {
				continue
			}
		}
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *materialRepo) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*model.Material, error) {
	if err := r.s.lock("materials.AdjustQuantity"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	m, ok := r.s.st.materials[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if m.Quantity+delta < 0 {
		return nil, repository.ErrInsufficientStock
	}
	m.Quantity += delta
	m.UpdatedAt = now()
	r.s.st.materials[id] = m
	return &m, nil
}

type patientRepo struct{ s *Store }

func (r *patientRepo) Create(ctx context.Context, p *model.Patient) error {
	if err := r.s.lock("patients.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt, p.UpdatedAt = now(), now()
	r.s.st.patients[p.ID] = *p
	return nil
}

func (r *patientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	if err := r.s.lock("patients.Get"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	p, ok := r.s.st.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *patientRepo) Update(ctx context.Context, p *model.Patient) error {
	if err := r.s.lock("patients.Update"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	existing, ok := r.s.st.patients[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = now()
	r.s.st.patients[p.ID] = *p
	return nil
}

func (r *patientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.s.lock("patients.Delete"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.patients[id]; !ok {
		return repository.ErrNotFound
	}
	for _, p := range r.s.st.procedures {
		if p.PatientID == id {
			return repository.ErrReferenced
		}
	}
	delete(r.s.st.patients, id)
	return nil
}

func (r *patientRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.st.patients[id]
	return ok, nil
}

func (r *patientRepo) List(ctx context.Context, f *model.PatientFilter) ([]*model.Patient, error) {
	if err := r.s.lock("patients.List"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	var out []*model.Patient
	for _, p := range r.s.st.patients {
		p := p
		if f != nil {
			if f.Name != "" && !containsFold(p.Name, f.Name) {
				continue
			}
			if f.Age != nil && p.Age != *f.Age {
				continue
			}
			if f.MinLoyalty != nil && p.LoyaltyPoints < *f.MinLoyalty {
				continue
			}
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *patientRepo) AddLoyaltyPoints(ctx context.Context, id uuid.UUID, points int) (*model.Patient, error) {
	if err := r.s.lock("patients.AddLoyaltyPoints"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	p, ok := r.s.st.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.LoyaltyPoints += points
	p.UpdatedAt = now()
	r.s.st.patients[id] = p
	return &p, nil
}

type procedureRepo struct{ s *Store }

func (r *procedureRepo) Create(ctx context.Context, p *model.Procedure) error {
	if err := r.s.lock("procedures.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	if _, ok := r.s.st.patients[p.PatientID]; !ok {
		return repository.ErrReferenced
	}
	for i := range p.Materials {
		p.Materials[i].ProcedureID = p.ID
	}
	r.s.st.procedures[p.ID] = copyProcedure(*p)
	return nil
}

func (r *procedureRepo) Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	if err := r.s.lock("procedures.Get"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	p, ok := r.s.st.procedures[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = copyProcedure(p)
	return &p, nil
}

func (r *procedureRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.s.lock("procedures.Delete"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.procedures[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.st.procedures, id)
	return nil
}

func (r *procedureRepo) List(ctx context.Context, f *model.ProcedureFilter) ([]*model.Procedure, error) {
	if err := r.s.lock("procedures.List"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	var out []*model.Procedure
	for _, p := range r.s.st.procedures {
		p := copyProcedure(p)
		if f != nil {
			if f.Name != "" && !containsFold(p.Name, f.Name) {
				continue
			}
			if f.PatientID != nil && p.PatientID != *f.PatientID {
				continue
			}
			if f.AssistantUsed != nil && p.AssistantUsed != *f.AssistantUsed {
				continue
			}
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	if err := r.s.lock("outbox.Create"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = string(model.OutboxStatusPending)
	e.CreatedAt, e.UpdatedAt = now(), now()
	r.s.st.outbox = append(r.s.st.outbox, *e)
	return nil
}

func (r *outboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if err := r.s.lock("outbox.GetPendingEvents"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	var out []*model.OutboxEvent
	for _, e := range r.s.st.outbox {
		if len(out) == limit {
			break
		}
		if e.Status == string(model.OutboxStatusPending) {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *outboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return r.GetPendingEvents(ctx, limit)
}

func (r *outboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	if err := r.s.lock("outbox.UpdateStatus"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	for i := range r.s.st.outbox {
		e := &r.s.st.outbox[i]
		if e.ID != id {
			continue
		}
		e.Status = string(status)
		e.ErrorMessage = errorMessage
		e.UpdatedAt = now()
		switch status {
		case model.OutboxStatusFailed:
			e.RetryCount++
		case model.OutboxStatusProcessed:
			t := now()
			e.ProcessedAt = &t
		}
		return nil
	}
	return repository.ErrNotFound
}

func (r *outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	if err := r.s.lock("outbox.DeleteProcessedBefore"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	kept := r.s.st.outbox[:0]
	var n int64
	for _, e := range r.s.st.outbox {
		if e.Status == string(model.OutboxStatusProcessed) && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.st.outbox = kept
	return n, nil
}
