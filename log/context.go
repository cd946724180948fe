package log

import "context"

type (
	ctxLevelKey struct{}
	ctxNamesKey struct{}
)

func WithLevel(ctx context.Context, lvl Level) context.Context {
	return context.WithValue(ctx, ctxLevelKey{}, lvl)
}

func LevelFromContext(ctx context.Context) Level {
	lvl, _ := ctx.Value(ctxLevelKey{}).(Level)

	return lvl
}

func WithNames(ctx context.Context, names ...string) context.Context {
	// trim capacity for force copy on next append
	oldNames := NamesFromContext(ctx)
	oldNames = oldNames[:len(oldNames):len(oldNames)]

	return context.WithValue(ctx, ctxNamesKey{}, append(oldNames, names...))
}

func NamesFromContext(ctx context.Context) []string {
	names, _ := ctx.Value(ctxNamesKey{}).([]string)

	return names[:len(names):len(names)]
}
