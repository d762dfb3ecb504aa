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

package types

import "strings"

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// TaskStatus is stored by name in tasks.status.
type TaskStatus int

const (
	TaskNone TaskStatus = iota
	TaskToDo
	TaskInProgress
	TaskDone
)

var _ BaseEnum = TaskNone

var taskStatusNames = [...]string{"NONE", "TO_DO", "IN_PROGRESS", "DONE"}

var taskStatusDescs = [...]string{"no status", "to do", "in progress", "done"}

func (s TaskStatus) IsValid() bool { return s >= TaskNone && s <= TaskDone }

func (s TaskStatus) Number() int {
	if !s.IsValid() {
		return IllegalValue
	}
	return int(s)
}

func (s TaskStatus) Name() string {
	if !s.IsValid() {
		return IllegalName
	}
	return taskStatusNames[s]
}

func (s TaskStatus) String() string { return s.Name() }

func (s TaskStatus) Desc() string {
	if !s.IsValid() {
		return IllegalDesc
	}
	return taskStatusDescs[s]
}

// ParseTaskStatus maps a stored name back to its status. Empty maps to
// TaskNone; unknown names are reported as invalid.
func ParseTaskStatus(name string) (TaskStatus, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return TaskNone, true
	}
	for i, n := range taskStatusNames {
		if n == name {
			return TaskStatus(i), true
		}
	}
	return TaskStatus(IllegalValue), false
}
