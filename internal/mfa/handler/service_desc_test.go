package handler

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestServiceDesc_MatchesProtoContract(t *testing.T) {
	path := filepath.Join("..", "..", "..", "api", filepath.FromSlash(MFAService_ServiceDesc.Metadata.(string)))
	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("contract %s: %v", path, err)
	}

	pkg := regexp.MustCompile(`(?m)^package\s+([\w.]+);`).FindSubmatch(src)
	svc := regexp.MustCompile(`(?m)^service\s+(\w+)\s*\{`).FindSubmatch(src)
	if pkg == nil || svc == nil || string(pkg[1])+"."+string(svc[1]) != ServiceName {
		t.Fatalf("proto declares %q.%q, want %s", pkg, svc, ServiceName)
	}

	var rpcs []string
	for _, m := range regexp.MustCompile(`(?m)^\s*rpc\s+(\w+)\s*\(`).FindAllSubmatch(src, -1) {
		rpcs = append(rpcs, string(m[1]))
	}
	methods := MFAService_ServiceDesc.Methods
	if len(rpcs) != len(methods) {
		t.Fatalf("proto has %d rpcs, ServiceDesc has %d methods", len(rpcs), len(methods))
	}
	for i, m := range methods {
		if rpcs[i] != m.MethodName {
			t.Errorf("method %d: proto %q, ServiceDesc %q", i, rpcs[i], m.MethodName)
		}
	}
}
