package main

import (
	"fmt"
	"strings"
)

// StatusLine collects fields shown in the window title.
type StatusLine struct {
	fields []string
}

func (sl *StatusLine) Add(format string, args ...any) {
	sl.fields = append(sl.fields, fmt.Sprintf(format, args...))
}

func (sl *StatusLine) Clear() {
	sl.fields = sl.fields[:0]
}

func (sl *StatusLine) String() string {
	return strings.Join(sl.fields, " | ")
}

// keyLatch reports a key once per press.
type keyLatch struct {
	down map[int]bool
}

func (k *keyLatch) pressed(isDown func(int) bool, key int) bool {
	if k.down == nil {
		k.down = make(map[int]bool)
	}
	now := isDown(key)
	was := k.down[key]
	k.down[key] = now
	return now && !was
}
