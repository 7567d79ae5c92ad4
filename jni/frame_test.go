package jni_test

import (
	"errors"
	"testing"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/jni/jnitest"
)

func pointClass(t *testing.T) (*jni.Env, *jnitest.Bridge, *jni.Class) {
	t.Helper()
	env, b := newEnv(t, "demo.Point")
	p := mustClass(t, env, "demo.Point")
	if err := p.Register(func(r *jni.Registrar) {
		r.Constructor()
		r.Method("to_string", nil, "string")
	}); err != nil {
		t.Fatal(err)
	}
	b.Returns("toString", "()Ljava/lang/String;", "point")
	return env, b, p
}

func TestFramePopReleases(t *testing.T) {
	env, b, p := pointClass(t)
	base := b.LiveRefs()

	f := env.PushFrame()
	a, _ := p.New()
	kept, _ := p.New()
	if b.LiveRefs() != base+2 {
		t.Fatalf("live refs = %d, want %d", b.LiveRefs(), base+2)
	}
	if f.Len() != 2 {
		t.Errorf("frame tracks %d refs, want 2", f.Len())
	}

	if err := f.Pop(kept); err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if b.LiveRefs() != base+1 {
		t.Errorf("live refs after pop = %d, want %d", b.LiveRefs(), base+1)
	}
	if !a.Released() || kept.Released() {
		t.Errorf("released: a=%v kept=%v", a.Released(), kept.Released())
	}

	_, err := a.Call("to_string")
	if !errors.Is(err, jni.ErrReleased) || !errors.Is(err, jni.ErrBridge) {
		t.Errorf("call on released object: %v", err)
	}
	if s, err := kept.Call("to_string"); err != nil || s != "point" {
		t.Errorf("call on kept object: %v, %v", s, err)
	}
	if err := f.Pop(); err == nil {
		t.Error("second Pop succeeded")
	}
}

func TestFramePopOutOfOrder(t *testing.T) {
	env, _, _ := pointClass(t)
	outer := env.PushFrame()
	inner := env.PushFrame()
	if err := outer.Pop(); !errors.Is(err, jni.ErrBridge) {
		t.Errorf("out of order pop: %v", err)
	}
	if err := inner.Pop(); err != nil {
		t.Fatal(err)
	}
	if err := outer.Pop(); err != nil {
		t.Fatal(err)
	}
}

func TestClassBindingsSurviveFrames(t *testing.T) {
	env, _, p := pointClass(t)
	f := env.PushFrame()
	if _, err := env.Class("java.lang.String"); err != nil {
		t.Fatal(err)
	}
	if err := f.Pop(); err != nil {
		t.Fatal(err)
	}
	if p.Ref().Released() {
		t.Error("class ref released by frame pop")
	}
	str, _ := env.Class("java.lang.String")
	if str.Ref().Released() {
		t.Error("class bound inside a frame was released by its pop")
	}
}

func TestObjectRelease(t *testing.T) {
	_, b, p := pointClass(t)
	obj, _ := p.New()
	live := b.LiveRefs()
	if err := obj.Release(); err != nil {
		t.Fatal(err)
	}
	if err := obj.Release(); err != nil {
		t.Errorf("second release: %v", err)
	}
	if b.LiveRefs() != live-1 {
		t.Errorf("live refs = %d, want %d", b.LiveRefs(), live-1)
	}
	if _, err := obj.Call("to_string"); !errors.Is(err, jni.ErrReleased) {
		t.Errorf("call after release: %v", err)
	}
}

func TestEnvCloseReleasesEverything(t *testing.T) {
	b := jnitest.New("demo.Point")
	env := jni.NewEnv(b)
	p, err := env.Class("demo.Point")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Constructor(); err != nil {
		t.Fatal(err)
	}
	env.PushFrame()
	if _, err := p.New(); err != nil {
		t.Fatal(err)
	}
	if env.LiveRefs() != 2 {
		t.Errorf("env live refs = %d, want 2", env.LiveRefs())
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if b.LiveRefs() != 0 {
		t.Errorf("bridge still holds %d refs", b.LiveRefs())
	}
	if _, err := env.Class("demo.Point"); !errors.Is(err, jni.ErrBridge) {
		t.Errorf("use after close: %v", err)
	}
}
