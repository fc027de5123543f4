package config

import (
	"testing"
)

func newTestConfig() (*Config, *bool, *int, *uint64, *string) {
	c := New()
	b := c.BoolParam(new(bool), "bool-var", true, Default)
	i := c.IntParam(new(int), "int-var", 17, Default)
	u := c.Uint64Param(new(uint64), "uint64-var", 1<<33, Default)
	s := c.StringParam(new(string), "string-var", "default", Default)
	return c, b, i, u, s
}

func TestDefaults(t *testing.T) {
	_, b, i, u, s := newTestConfig()
	if !*b || *i != 17 || *u != 1<<33 || *s != "default" {
		t.Errorf("defaults not set: %v %d %d %q", *b, *i, *u, *s)
	}
}

func TestSet(t *testing.T) {
	c, b, i, u, s := newTestConfig()

	cases := []struct {
		name string
		val  string
		fail bool
	}{
		{name: "bool-var", val: "false"},
		{name: "int-var", val: "-5"},
		{name: "uint64-var", val: "123456789012"},
		{name: "string-var", val: "explicit"},
		{name: "bool-var", val: "maybe", fail: true},
		{name: "int-var", val: "zero", fail: true},
		{name: "uint64-var", val: "-1", fail: true},
		{name: "no-such-var", val: "1", fail: true},
	}

	for _, tc := range cases {
		err := c.Set(tc.name, tc.val)
		if tc.fail {
			if err == nil {
				t.Errorf("Set(%q, %q) did not fail", tc.name, tc.val)
			}
		} else if err != nil {
			t.Errorf("Set(%q, %q) failed with %s", tc.name, tc.val, err)
		}
	}

	if *b || *i != -5 || *u != 123456789012 || *s != "explicit" {
		t.Errorf("Set() results wrong: %v %d %d %q", *b, *i, *u, *s)
	}
}

func TestLoad(t *testing.T) {
	cases := []struct {
		cfg  string
		fail bool
		b    bool
		i    int
		u    uint64
		s    string
	}{
		{cfg: `bool-var = false`, b: false, i: 17, u: 1 << 33, s: "default"},
		{cfg: `int-var = -3
string-var = "from config"`, b: true, i: -3, u: 1 << 33, s: "from config"},
		{cfg: `unknown-var = 1`, fail: true},
		{cfg: `int-var = "nope"`, fail: true},
		{cfg: `uint64-var = 1024`, b: true, i: 17, u: 1024, s: "default"},
	}

	for _, tc := range cases {
		c, b, i, u, s := newTestConfig()
		err := c.load([]byte(tc.cfg))
		if tc.fail {
			if err == nil {
				t.Errorf("load(%q) did not fail", tc.cfg)
			}
			continue
		}
		if err != nil {
			t.Errorf("load(%q) failed with %s", tc.cfg, err)
			continue
		}
		if *b != tc.b || *i != tc.i || *u != tc.u || *s != tc.s {
			t.Errorf("load(%q) got %v %d %d %q want %v %d %d %q", tc.cfg, *b, *i, *u,
				*s, tc.b, tc.i, tc.u, tc.s)
		}
	}
}

func TestExplicitWinsOverConfig(t *testing.T) {
	c, _, i, _, _ := newTestConfig()
	err := c.Set("int-var", "99")
	if err != nil {
		t.Fatal(err)
	}
	err = c.load([]byte(`int-var = 1`))
	if err != nil {
		t.Fatal(err)
	}
	if *i != 99 {
		t.Errorf("explicit setting overridden: got %d want 99", *i)
	}
}

func TestList(t *testing.T) {
	c, _, _, _, _ := newTestConfig()
	var names []string
	c.List(
		func(name, val string) {
			names = append(names, name)
		})
	want := []string{"bool-var", "int-var", "string-var", "uint64-var"}
	if len(names) != len(want) {
		t.Fatalf("List() got %d params want %d", len(names), len(want))
	}
	for idx, name := range want {
		if names[idx] != name {
			t.Errorf("List() param %d got %q want %q", idx, names[idx], name)
		}
	}
}
