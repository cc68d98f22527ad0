package memory

import (
	"context"
	"sort"

	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
)

// PublishSuggestions installs batch as the next generation. Readers holding
// the previous generation keep a consistent view until they reload.
func (s *Store) PublishSuggestions(_ context.Context, batch []model.Suggestion) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current.Load()
	gen := &generation{id: prev.id + 1, items: make([]model.Suggestion, len(batch))}
	now := s.now()
	for i, sg := range batch {
		s.nextSuggID++
		sg.ID = s.nextSuggID
		sg.Generation = gen.id
		sg.CreatedAt = now
		gen.items[i] = sg
	}
	s.current.Store(gen)
	return gen.id, nil
}

// Suggestions returns the current generation without taking the store lock.
func (s *Store) Suggestions(context.Context) ([]model.Suggestion, error) {
	gen := s.current.Load()
	out := make([]model.Suggestion, len(gen.items))
	copy(out, gen.items)
	return out, nil
}

func (s *Store) PromoteSuggestion(_ context.Context, id int64) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.current.Load()
	idx := -1
	for i, sg := range gen.items {
		if sg.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Task{}, store.ErrNotFound
	}
	task := s.insertTask(model.TaskFromSuggestion(gen.items[idx]))
	rest := make([]model.Suggestion, 0, len(gen.items)-1)
	rest = append(rest, gen.items[:idx]...)
	rest = append(rest, gen.items[idx+1:]...)
	s.current.Store(&generation{id: gen.id, items: rest})
	return task, nil
}

func (s *Store) CreateTask(_ context.Context, in model.TaskInput) (model.Task, error) {
	if err := in.Validate(); err != nil {
		return model.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTask(in), nil
}

func (s *Store) insertTask(in model.TaskInput) model.Task {
	s.nextTaskID++
	t := model.Task{
		ID:            s.nextTaskID,
		FromStationID: in.FromStationID,
		ToStationID:   in.ToStationID,
		Qty:           in.Qty,
		Reason:        in.Reason,
		Status:        model.TaskReady,
		CreatedAt:     s.now(),
	}
	s.tasks[t.ID] = t
	return t
}

// ClaimTask assigns the oldest ready task. The store mutex serialises
// claims so no task is handed out twice.
func (s *Store) ClaimTask(_ context.Context, workerID string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *model.Task
	for id := range s.tasks {
		t := s.tasks[id]
		if t.Status != model.TaskReady {
			continue
		}
		if oldest == nil || older(t, *oldest) {
			c := t
			oldest = &c
		}
	}
	if oldest == nil {
		return model.Task{}, store.ErrQueueEmpty
	}
	now := s.now()
	w := workerID
	oldest.Status = model.TaskAssigned
	oldest.WorkerID = &w
	oldest.AssignedAt = &now
	s.tasks[oldest.ID] = *oldest
	return *oldest, nil
}

func older(a, b model.Task) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *Store) CompleteTask(_ context.Context, id int64) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, store.ErrNotFound
	}
	if t.Status != model.TaskCompleted {
		now := s.now()
		t.CompletedAt = &now
	}
	t.Status = model.TaskCompleted
	s.tasks[id] = t
	return t, nil
}

func (s *Store) Task(_ context.Context, id int64) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, store.ErrNotFound
	}
	return t, nil
}

// Tasks lists tasks matching f, newest first.
func (s *Store) Tasks(_ context.Context, f store.TaskFilter) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.WorkerID != "" && (t.WorkerID == nil || *t.WorkerID != f.WorkerID) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return older(out[j], out[i]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
