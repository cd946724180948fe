package empty

type (
	Chan   = chan struct{}
	Struct = struct{}
)
