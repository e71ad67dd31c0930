// Package nsxtest provides an in-memory controller speaking the policy API
// over HTTP, for tests.
package nsxtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/cuemby/nsx-orchestrator/pkg/nsx/model"
	"github.com/cuemby/nsx-orchestrator/pkg/nsx/transport"
)

// Seeded identifiers
const (
	Tier0Gateway         = "t0"
	EdgeClusterPath      = "/infra/sites/default/enforcement-points/default/edge-clusters/ec1"
	EnforcementPoint     = "/infra/sites/default/enforcement-points/default"
	OverlayTransportZone = EnforcementPoint + "/transport-zones/overlay-tz"
	VlanTransportZone    = EnforcementPoint + "/transport-zones/edge-vlan-tz"
)

// collections are the last path elements that name a list rather than an
// object
var collections = map[string]bool{
	"tier-0s":             true,
	"tier-1s":             true,
	"locale-services":     true,
	"nat-rules":           true,
	"segments":            true,
	"groups":              true,
	"services":            true,
	"security-policies":   true,
	"rules":               true,
	"lb-services":         true,
	"lb-pools":            true,
	"lb-virtual-servers":  true,
	"lb-monitor-profiles": true,
	"lb-app-profiles":     true,
	"dhcp-relay-configs":  true,
	"sites":               true,
	"enforcement-points":  true,
	"transport-zones":     true,
}

type failure struct {
	status  int
	message string
}

// Server is a fake controller. Objects are stored as JSON keyed by path.
// PATCH merges top-level fields into the stored object, DELETE of a missing
// object succeeds, and DELETE of an object with stored descendants is
// rejected the way the controller rejects deleting a parent in use.
type Server struct {
	*httptest.Server

	// PageSize splits list replies into cursor pages when positive
	PageSize int

	mu         sync.Mutex
	objects    map[string]map[string]any
	implicit   map[string]bool
	mutations  map[string]int
	portCounts map[string][]int64
	portCalls  map[string]int
	failures   map[string]failure
}

// NewServer starts a fake controller that is closed with the test
func NewServer(t testing.TB) *Server {
	s := &Server{
		objects:    make(map[string]map[string]any),
		implicit:   make(map[string]bool),
		mutations:  make(map[string]int),
		portCounts: make(map[string][]int64),
		portCalls:  make(map[string]int),
		failures:   make(map[string]failure),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// TransportConfig returns a transport configuration reaching the server
func (s *Server) TransportConfig() transport.Config {
	return transport.Config{
		BaseURL:  s.URL,
		Username: "admin",
		Password: "admin",
	}
}

// SeedDefaults stores the objects every controller ships with: one site,
// enforcement point, a VLAN and an overlay transport zone, a tier-0 gateway
// bound to an edge cluster, load balancer application profiles, the default
// passive monitor and a few default services.
func (s *Server) SeedDefaults() {
	s.Put(model.SitesPath+"/default", map[string]any{"resource_type": "Site"})
	s.Put(EnforcementPoint, map[string]any{"resource_type": "EnforcementPoint"})
	s.Put(VlanTransportZone, map[string]any{"tz_type": model.TzTypeVlanBacked})
	s.Put(OverlayTransportZone, map[string]any{"tz_type": model.TzTypeOverlayStandard})

	s.Put(model.Tier0Path(Tier0Gateway), map[string]any{"resource_type": "Tier0"})
	s.Put(model.Tier0LocaleServicesPath(Tier0Gateway)+"/default", map[string]any{
		"resource_type":     model.ResourceLocaleServices,
		"edge_cluster_path": EdgeClusterPath,
	})

	s.Put(model.LBAppProfilesPath+"/default-http-lb-app-profile", map[string]any{"resource_type": model.ResourceLBHttpProfile})
	s.Put(model.LBAppProfilesPath+"/default-tcp-lb-app-profile", map[string]any{"resource_type": model.ResourceLBFastTcpProfile})
	s.Put(model.LBAppProfilesPath+"/default-udp-lb-app-profile", map[string]any{"resource_type": model.ResourceLBFastUdpProfile})
	s.Put(model.DefaultPassiveMonitorPath, map[string]any{"resource_type": "LBPassiveMonitorProfile"})

	s.Put(model.ServicePath("HTTP"), defaultL4Service("TCP", "80"))
	s.Put(model.ServicePath("HTTPS"), defaultL4Service("TCP", "443"))
	s.Put(model.ServicePath("DNS-UDP"), defaultL4Service("UDP", "53"))
	s.Put(model.ServicePath("Web-Ports"), map[string]any{
		"is_default":      true,
		"service_entries": []any{
			map[string]any{"resource_type": model.ResourceL4PortSetEntry, "l4_protocol": "TCP", "destination_ports": []any{"80"}},
			map[string]any{"resource_type": model.ResourceL4PortSetEntry, "l4_protocol": "TCP", "destination_ports": []any{"8080"}},
		},
	})
	s.Put(model.ServicePath("ICMP-Echo-Request"), map[string]any{
		"is_default":      true,
		"service_entries": []any{
			map[string]any{"resource_type": model.ResourceICMPTypeEntry, "protocol": "ICMPv4", "icmp_type": 8},
		},
	})
}

func defaultL4Service(protocol, port string) map[string]any {
	return map[string]any{
		"is_default":      true,
		"service_entries": []any{
			map[string]any{
				"resource_type":     model.ResourceL4PortSetEntry,
				"l4_protocol":       protocol,
				"destination_ports": []any{port},
			},
		},
	}
}

// Put stores obj at path without counting a mutation
func (s *Server) Put(path string, obj any) {
	fields, err := toFields(obj)
	if err != nil {
		panic(fmt.Sprintf("nsxtest: cannot store %s: %v", path, err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(path, fields)
}

// Get decodes the object at path into out and reports whether it exists
func (s *Server) Get(path string, out any) bool {
	s.mu.Lock()
	obj, ok := s.objects[path]
	var data []byte
	if ok {
		data, _ = json.Marshal(obj)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			panic(fmt.Sprintf("nsxtest: cannot decode %s: %v", path, err))
		}
	}
	return true
}

// Has reports whether an object exists at path
func (s *Server) Has(path string) bool {
	return s.Get(path, nil)
}

// Mutations returns how many times method was issued against path
func (s *Server) Mutations(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations[method+" "+path]
}

// TotalMutations returns the number of PATCH and DELETE calls served
func (s *Server) TotalMutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.mutations {
		total += n
	}
	return total
}

// SetPortCounts makes successive port-count reads of segment return counts.
// The last value repeats once the sequence is spent.
func (s *Server) SetPortCounts(segment string, counts ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portCounts[segment] = counts
	s.portCalls[segment] = 0
}

// PortCountCalls returns how many times segment's ports were counted
func (s *Server) PortCountCalls(segment string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portCalls[segment]
}

// FailNext makes the next method call on path fail with status
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, message: message}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, transport.PolicyAPIPrefix)
	path = strings.TrimSuffix(path, "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Method + " " + path
	if f, ok := s.failures[key]; ok {
		delete(s.failures, key)
		writeError(w, f.status, f.message)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r, path)
	case http.MethodPatch:
		s.mutations[key]++
		s.handlePatch(w, r, path)
	case http.MethodDelete:
		s.mutations[key]++
		s.handleDelete(w, path)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, path string) {
	if obj, ok := s.objects[path]; ok {
		writeJSON(w, http.StatusOK, obj)
		return
	}

	if strings.HasSuffix(path, "/members/segment-ports") {
		segment := lastElement(strings.TrimSuffix(path, "/members/segment-ports"))
		writeJSON(w, http.StatusOK, map[string]any{
			"results":      []any{},
			"result_count": s.nextPortCount(segment),
		})
		return
	}

	if collections[lastElement(path)] {
		s.writeList(w, r, path)
		return
	}

	writeError(w, http.StatusNotFound, fmt.Sprintf("The path=[%s] is invalid", path))
}

func (s *Server) nextPortCount(segment string) int64 {
	counts := s.portCounts[segment]
	call := s.portCalls[segment]
	s.portCalls[segment]++
	if len(counts) == 0 {
		return 0
	}
	if call >= len(counts) {
		return counts[len(counts)-1]
	}
	return counts[call]
}

func (s *Server) writeList(w http.ResponseWriter, r *http.Request, path string) {
	var keys []string
	for key := range s.objects {
		if parent(key) == path {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := 0
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(keys) {
			writeError(w, http.StatusBadRequest, "invalid cursor "+cursor)
			return
		}
		start = n
	}
	end := len(keys)
	next := ""
	if s.PageSize > 0 && start+s.PageSize < len(keys) {
		end = start + s.PageSize
		next = strconv.Itoa(end)
	}

	results := make([]any, 0, end-start)
	for _, key := range keys[start:end] {
		results = append(results, s.objects[key])
	}
	reply := map[string]any{
		"results":      results,
		"result_count": len(keys),
	}
	if next != "" {
		reply["cursor"] = next
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request, path string) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}

	merged := make(map[string]any)
	for k, v := range s.objects[path] {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	s.store(path, merged)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, path string) {
	if _, ok := s.objects[path]; !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	if strings.HasPrefix(path, "/infra/segments/") && s.currentPortCount(lastElement(path)) > 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Segment %s has ports attached", lastElement(path)))
		return
	}

	var children []string
	for key := range s.objects {
		if strings.HasPrefix(key, path+"/") {
			if !s.implicit[key] {
				writeError(w, http.StatusBadRequest,
					fmt.Sprintf("Cannot delete %s: %s still references it", path, key))
				return
			}
			children = append(children, key)
		}
	}
	for _, key := range children {
		delete(s.objects, key)
		delete(s.implicit, key)
	}
	delete(s.objects, path)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) currentPortCount(segment string) int64 {
	counts := s.portCounts[segment]
	if len(counts) == 0 {
		return 0
	}
	call := s.portCalls[segment] - 1
	if call < 0 {
		call = 0
	}
	if call >= len(counts) {
		call = len(counts) - 1
	}
	return counts[call]
}

// store fills in the fields the controller mints and stores nested rules
// of a security policy as their own objects
func (s *Server) store(path string, fields map[string]any) {
	id := lastElement(path)
	if _, ok := fields["id"]; !ok {
		fields["id"] = id
	}
	if _, ok := fields["display_name"]; !ok {
		fields["display_name"] = id
	}
	fields["path"] = path
	fields["parent_path"] = parent(parent(path))
	if _, ok := fields["marked_for_delete"]; !ok {
		fields["marked_for_delete"] = false
	}
	s.objects[path] = fields

	rules, ok := fields["rules"].([]any)
	if !ok {
		return
	}
	for _, raw := range rules {
		rule, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ruleID, _ := rule["id"].(string)
		if ruleID == "" {
			continue
		}
		rulePath := path + "/rules/" + ruleID
		child := make(map[string]any, len(rule)+3)
		for k, v := range rule {
			child[k] = v
		}
		child["path"] = rulePath
		child["parent_path"] = path
		child["marked_for_delete"] = false
		s.objects[rulePath] = child
		s.implicit[rulePath] = true
	}
}

func toFields(obj any) (map[string]any, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func parent(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return ""
	}
	return path[:i]
}

func lastElement(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"httpStatus":    http.StatusText(status),
		"error_code":    status * 10,
		"module_name":   "nsxtest",
		"error_message": message,
	})
}
