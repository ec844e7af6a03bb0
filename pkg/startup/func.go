package startup

import "context"

// FuncDependency adapts a pair of functions to StartupDependency
type FuncDependency struct {
	Name      string
	Requires  []string
	StartFunc func(ctx context.Context) error
	StopFunc  func(ctx context.Context) error
}

func (f *FuncDependency) GetName() string {
	return f.Name
}

func (f *FuncDependency) DependsOn() []string {
	return f.Requires
}

func (f *FuncDependency) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f *FuncDependency) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}
