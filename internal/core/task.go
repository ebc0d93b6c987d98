package core

import "context"

// TaskCreator 每次调度都新建一个实例, 任务之间不共享状态
type TaskCreator func() Task

// Task 可被 engine 调度的任务
type Task interface {
	// Run params 来自代码注册的默认值或 YAML jobs 配置
	Run(ctx context.Context, params map[string]any) error

	// Identifier 日志里使用的任务名
	Identifier() string
}

// Func 把一个函数包装成 Task
type Func struct {
	Name string
	Fn   func(ctx context.Context, params map[string]any) error
}

func (f Func) Run(ctx context.Context, params map[string]any) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx, params)
}

func (f Func) Identifier() string {
	return f.Name
}
