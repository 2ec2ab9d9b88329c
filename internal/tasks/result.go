package tasks

import "errors"

var (
	// ErrNotFound: задачи с таким id нет.
	ErrNotFound = errors.New("Task not found")
	// ErrInvalidTask: запись не прошла валидацию.
	ErrInvalidTask = errors.New("invalid task")
)

// Result: ответ мутирующих операций хранилища.
//
// Ошибки не выходят за границу Store: они превращаются в Success=false
// и текст в Error. Исходная ошибка доступна через Err для errors.Is.
type Result struct {
	Success bool   `json:"success"`
	Task    *Task  `json:"task,omitempty"`
	Error   string `json:"error,omitempty"`

	err error
}

// Err возвращает исходную ошибку (nil при успехе).
func (r Result) Err() error { return r.err }

func succeeded(t *Task) Result {
	return Result{Success: true, Task: t}
}

func failed(err error) Result {
	return Result{Success: false, Error: err.Error(), err: err}
}
