package assoc

import (
	"errors"
	"testing"
)

func TestParameters_LiteralAndDerived(t *testing.T) {
	t.Parallel()
	ps := NewParameters()
	ps.Set("length", 10.0)
	ps.Set("spacing", 2)
	ps.SetDerived("count", func(ps *Parameters) (any, error) {
		l, err := ps.Float("length")
		if err != nil {
			return nil, err
		}
		s, err := ps.Float("spacing")
		if err != nil {
			return nil, err
		}
		return int(l/s) + 1, nil
	})

	n, err := ps.Int("count")
	if err != nil || n != 6 {
		t.Fatalf("count = %d, %v; want 6", n, err)
	}
	ps.Set("length", 20.0)
	if n, _ := ps.Int("count"); n != 11 {
		t.Errorf("count after edit = %d, want 11", n)
	}
	if names := ps.Names(); len(names) != 3 || names[0] != "count" {
		t.Errorf("Names = %v", names)
	}

	ps.Set("count", 3)
	if n, _ := ps.Int("count"); n != 3 {
		t.Errorf("literal should replace derivation, got %d", n)
	}
}

func TestParameters_Errors(t *testing.T) {
	t.Parallel()
	ps := NewParameters()
	if _, err := ps.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	ps.SetDerived("loop", func(ps *Parameters) (any, error) { return ps.Get("loop") })
	if _, err := ps.Get("loop"); !errors.Is(err, ErrGraphInvariant) {
		t.Errorf("expected ErrGraphInvariant for a self derivation, got %v", err)
	}
	ps.Set("flag", "yes")
	if _, err := ps.Bool("flag"); err == nil {
		t.Error("expected a type error")
	}
	ps.Set("ratio", 2.5)
	if _, err := ps.Int("ratio"); err == nil {
		t.Error("expected an error for a fractional int")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if err := r.Register("fake", func() Body { return &fakeBody{} }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("fake", func() Body { return &fakeBody{} }); !errors.Is(err, ErrDuplicateKind) {
		t.Errorf("expected ErrDuplicateKind, got %v", err)
	}
	b, err := r.New("fake")
	if err != nil || b.Kind() != "fake" {
		t.Fatalf("New = %v, %v", b, err)
	}
	if _, err := r.New("dimension"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
	if kinds := r.Kinds(); len(kinds) != 1 || kinds[0] != "fake" {
		t.Errorf("Kinds = %v", kinds)
	}
	if !r.Has("fake") || r.Has("dimension") {
		t.Error("Has disagrees with Register")
	}
}

// sizedBody reads its size from the action when bound.
type sizedBody struct {
	fakeBody
	size  int
	owner ActionID
}

func (b *sizedBody) Kind() string { return "sized" }

func (b *sizedBody) Bind(a *Action) error {
	n, err := a.Parameters().Int("size")
	if err != nil {
		return err
	}
	b.size = n
	b.owner = a.ID()
	return nil
}

func TestAction_Bind(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	if err := reg.Register("sized", func() Body { return &sizedBody{} }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tg := newTestGraph(t, WithRegistry(reg))
	a, err := tg.g.NewActionOfKind(tg.net, "sized")
	if err != nil {
		t.Fatalf("NewActionOfKind: %v", err)
	}

	err = a.Bind()
	var ee *EvalError
	if !errors.As(err, &ee) || ee.Action != a.ID() || !errors.Is(err, ErrNotFound) {
		t.Fatalf("binding without a size: got %v", err)
	}

	a.Parameters().Set("size", 4)
	if err := a.Bind(); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	b := a.Body().(*sizedBody)
	if b.size != 4 || b.owner != a.ID() {
		t.Errorf("bound body = %+v", b)
	}

	// Bodies without a Bind method have nothing to do.
	plain := tg.g.NewAction(tg.net, &fakeBody{})
	if err := plain.Bind(); err != nil {
		t.Errorf("Bind of a plain body: %v", err)
	}
}

func TestGraph_NewActionOfKind(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	if err := reg.Register("fake", func() Body { return &fakeBody{} }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tg := newTestGraph(t, WithRegistry(reg))
	a, err := tg.g.NewActionOfKind(tg.net, "fake")
	if err != nil {
		t.Fatalf("NewActionOfKind: %v", err)
	}
	if a.Kind() != "fake" || a.Network() != tg.net {
		t.Errorf("unexpected action %s", a)
	}
	if _, err := tg.g.NewActionOfKind(tg.net, "nope"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}
