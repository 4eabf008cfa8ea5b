package util

import "testing"

func TestMaskURL(t *testing.T) {
	cases := map[string]string{
		"":                                     "",
		"postgres://app:pw@h:5432/db":          "postgres://app:***@h:5432/db",
		"jdbc:postgresql://app:pw@h/db":        "jdbc:postgresql://app:***@h/db",
		"postgres://app@h/db":                  "postgres://app@h/db",
		"mysql://h/db?password=pw&parseTime=1": "mysql://h/db?parseTime=1&password=***",
		"app:pw@tcp(h:3306)/db":                "app:***@tcp(h:3306)/db",
		"app@tcp(h:3306)/db":                   "app@tcp(h:3306)/db",
		"host=h password=pw dbname=x":          "host=h password=*** dbname=x",
		"/var/lib/tenantdb/t1.db":              "/var/lib/tenantdb/t1.db",
	}
	for in, want := range cases {
		if got := MaskURL(in); got != want {
			t.Errorf("MaskURL(%q) = %q, want %q", in, got, want)
		}
	}
}
