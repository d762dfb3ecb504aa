/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tomoncle/keysell/database"
	"github.com/tomoncle/keysell/types"
)

const taskColumns = `t.id, t.uuid, t.type, t.status, t.title, t.description, t.date, t.duration,
	t.created_by, t.created_at, t.updated_by, t.updated_at, tre.real_estate_id`

type TaskRepository struct {
	baseRepository[Task]
}

func NewTaskRepository(db database.DataAccess) *TaskRepository {
	return &TaskRepository{baseRepository[Task]{
		db:      db,
		table:   "tasks",
		columns: taskColumns,
		from:    "tasks t LEFT JOIN tasks_real_estates tre ON t.id = tre.task_id",
		idCol:   "t.id",
		order:   "t.created_at ASC, t.id ASC",
		sorts:   map[string]string{"id": "t.id", "date": "t.date", "title": "t.title", "status": "t.status"},
		mapper:  mapTask,
	}}
}

func mapTask(row database.Row) (Task, error) {
	status, ok := types.ParseTaskStatus(row.String("status"))
	if !ok {
		return Task{}, fmt.Errorf("task %d: unknown status %q", row.Int64("id"), row.String("status"))
	}
	t := Task{
		ID:           row.Int64("id"),
		UUID:         row.String("uuid"),
		Type:         row.NullInt64("type"),
		Status:       status,
		Title:        row.String("title"),
		Description:  row.NullString("description"),
		Date:         optTime(row, "date"),
		Duration:     row.NullInt64("duration"),
		RealEstateID: row.NullInt64("real_estate_id"),
		CreatedBy:    row.NullInt64("created_by"),
		UpdatedBy:    row.NullInt64("updated_by"),
		UpdatedAt:    optTime(row, "updated_at"),
	}
	t.CreatedAt, _ = row.Time("created_at")
	return t, nil
}

// GetOne returns the task with its assigned users.
func (r *TaskRepository) GetOne(ctx context.Context, id int64) (*Task, error) {
	return r.load(ctx, r.db, id)
}

func (r *TaskRepository) load(ctx context.Context, ex database.Executor, id int64) (*Task, error) {
	t, err := r.getOne(ctx, ex, id)
	if err != nil || t == nil {
		return t, err
	}
	rows, err := ex.All(ctx, "SELECT user_id FROM tasks_users WHERE task_id = ? ORDER BY user_id", id)
	if err != nil {
		return nil, err
	}
	t.Users = ids(rows, "user_id")
	return t, nil
}

// Create stores the task, its real estate link and its user links in one
// transaction.
func (r *TaskRepository) Create(ctx context.Context, t *Task) (*Task, error) {
	var created *Task
	err := r.db.RunInTx(ctx, func(ctx context.Context, tx database.Executor) error {
		id, err := insertID(ctx, tx, r.db.Dialect(),
			`INSERT INTO tasks (uuid, type, status, title, description, date, duration, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), t.Type, t.Status.Name(), t.Title, t.Description, t.Date, t.Duration, t.CreatedBy)
		if err != nil {
			return err
		}
		if err := r.link(ctx, tx, id, t); err != nil {
			return err
		}
		created, err = r.load(ctx, tx, id)
		return err
	})
	return created, err
}

// Update rewrites the task and replaces its links.
func (r *TaskRepository) Update(ctx context.Context, id int64, t *Task) (*Task, error) {
	var updated *Task
	err := r.db.RunInTx(ctx, func(ctx context.Context, tx database.Executor) error {
		_, err := tx.Run(ctx,
			`UPDATE tasks SET type = ?, status = ?, title = ?, description = ?, date = ?, duration = ?, updated_by = ?
			WHERE id = ?`,
			t.Type, t.Status.Name(), t.Title, t.Description, t.Date, t.Duration, t.UpdatedBy, id)
		if err != nil {
			return err
		}
		if _, err := tx.Run(ctx, "DELETE FROM tasks_real_estates WHERE task_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.Run(ctx, "DELETE FROM tasks_users WHERE task_id = ?", id); err != nil {
			return err
		}
		if err := r.link(ctx, tx, id, t); err != nil {
			return err
		}
		updated, err = r.load(ctx, tx, id)
		return err
	})
	return updated, err
}

func (r *TaskRepository) link(ctx context.Context, tx database.Executor, id int64, t *Task) error {
	if t.RealEstateID != nil && *t.RealEstateID > 0 {
		if _, err := tx.Run(ctx, "INSERT INTO tasks_real_estates (task_id, real_estate_id) VALUES (?, ?)",
			id, *t.RealEstateID); err != nil {
			return err
		}
	}
	rows := make([][]any, 0, len(t.Users))
	for _, u := range t.Users {
		rows = append(rows, []any{id, u})
	}
	_, err := tx.BatchInsert(ctx, "INSERT INTO tasks_users (task_id, user_id)", rows)
	return err
}

// UpdateStatus reports whether the stored status now equals status.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status types.TaskStatus, updatedBy *int64) (bool, error) {
	if !status.IsValid() {
		return false, fmt.Errorf("invalid task status %d", status)
	}
	if _, err := r.db.Run(ctx, "UPDATE tasks SET status = ?, updated_by = ? WHERE id = ?",
		status.Name(), updatedBy, id); err != nil {
		return false, err
	}
	row, err := r.db.Get(ctx, "SELECT status FROM tasks WHERE id = ?", id)
	if err != nil || row == nil {
		return false, err
	}
	return row.String("status") == status.Name(), nil
}

// FindAllByRealEstateID lists the tasks linked to a real estate.
func (r *TaskRepository) FindAllByRealEstateID(ctx context.Context, realEstateID int64) ([]*Task, error) {
	return r.List(ctx, types.NewQueryFilter("tre.real_estate_id = ?", realEstateID))
}

// TaskTypes lists task types in display order, labelled in lang ("fr" or
// anything else for English).
func (r *TaskRepository) TaskTypes(ctx context.Context, lang string) ([]LabelValue, error) {
	label := "label_en"
	if lang == "fr" {
		label = "label_fr"
	}
	return database.AllAs(ctx, r.db, mapLabelValue,
		"SELECT id AS value, "+label+" AS label FROM tasks_types ORDER BY display_order")
}
