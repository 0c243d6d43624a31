// Package handle implements HandleManager (spec §4.1): the catalog of every
// interface known to one core, name resolution including transitive
// aliases, and the per-handle option flag word. Grounded on
// _examples/original_source/src/helics/core/HandleManager.{hpp,cpp}
// (addHandle/findHandle/getHandleOption shape) and the teacher's map-based
// registries (_examples/luxfi-consensus/networking/router,
// _examples/luxfi-consensus/networking/handler).
package handle

import (
	"fmt"

	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/herrors"
	"github.com/GMLC-TDC/HELICS-sub010/hset"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// BasicHandleInfo is the runtime record for one interface handle, local or
// remote, as catalogued by a HandleManager.
type BasicHandleInfo struct {
	Federate idspace.FederateID
	Handle   idspace.Handle
	Kind     hconfig.InterfaceKind
	Key      string
	Type     string
	Units    string
	Options  hconfig.HandleOptions
}

// Global returns the (federate, handle) pair addressing this interface.
func (b *BasicHandleInfo) Global() idspace.GlobalHandle {
	return idspace.GlobalHandle{Federate: b.Federate, Handle: b.Handle}
}

// kindKey scopes a name lookup to one interface kind, so that a translator
// can be indexed under {pub,input,endpoint} for the same key without those
// indices colliding with an unrelated interface of a different kind sharing
// the same literal name.
type kindKey struct {
	kind hconfig.InterfaceKind
	name string
}

// HandleManager catalogs all interfaces known to one core: local handles
// plus remote handles learned about via broker announcements.
type HandleManager struct {
	handles []*BasicHandleInfo
	byIndex map[idspace.GlobalHandle]*BasicHandleInfo
	byName  map[kindKey]*BasicHandleInfo

	// aliases maps a (kind, name) key to the next key on its alias chain.
	// After an alias pair {a, b} is added, {kind,a} and {kind,b} resolve
	// (via resolveOrSelf) to the same canonical key.
	aliases map[kindKey]kindKey

	generated map[hconfig.InterfaceKind]int
}

// New returns an empty HandleManager.
func New() *HandleManager {
	return &HandleManager{
		byIndex:   make(map[idspace.GlobalHandle]*BasicHandleInfo),
		byName:    make(map[kindKey]*BasicHandleInfo),
		aliases:   make(map[kindKey]kindKey),
		generated: make(map[hconfig.InterfaceKind]int),
	}
}

// translatorKinds is the set of kinds a translator is indexed under, per
// spec §3's "Translator aliases" invariant.
var translatorKinds = []hconfig.InterfaceKind{
	hconfig.KindPublication, hconfig.KindInput, hconfig.KindEndpoint,
}

// AddHandle inserts a new handle for federate, synthesizing a key if none
// was given, and returns the stored record. It fails with
// herrors.ErrDuplicateInterface if (federate, handleID) or the (kind, key)
// pair already exists.
func (m *HandleManager) AddHandle(
	federate idspace.FederateID,
	handleID idspace.Handle,
	kind hconfig.InterfaceKind,
	key, typeStr, unitsStr string,
) (*BasicHandleInfo, error) {
	gh := idspace.GlobalHandle{Federate: federate, Handle: handleID}
	if _, exists := m.byIndex[gh]; exists {
		return nil, herrors.New(herrors.ErrDuplicateInterface, herrors.InvalidArgument,
			"handle %s already registered", gh)
	}
	if key == "" {
		key = m.generateName(kind)
	}

	indexKinds := []hconfig.InterfaceKind{kind}
	if kind == hconfig.KindTranslator {
		indexKinds = translatorKinds
	}
	for _, k := range indexKinds {
		kk := kindKey{kind: k, name: key}
		if _, exists := m.byName[resolveOrSelf(m.aliases, kk)]; exists {
			return nil, herrors.New(herrors.ErrDuplicateInterface, herrors.InvalidArgument,
				"interface %q of kind %s already registered", key, k)
		}
	}

	info := &BasicHandleInfo{
		Federate: federate,
		Handle:   handleID,
		Kind:     kind,
		Key:      key,
		Type:     typeStr,
		Units:    unitsStr,
	}
	m.handles = append(m.handles, info)
	m.byIndex[gh] = info
	for _, k := range indexKinds {
		m.byName[kindKey{kind: k, name: key}] = info
	}
	return info, nil
}

func (m *HandleManager) generateName(kind hconfig.InterfaceKind) string {
	m.generated[kind]++
	return fmt.Sprintf("_%s_%d", kind, m.generated[kind])
}

// FindHandle looks up a handle by its (federate, handle) pair.
func (m *HandleManager) FindHandle(gh idspace.GlobalHandle) *BasicHandleInfo {
	return m.byIndex[gh]
}

// GetInterfaceHandle looks up by name under the given kind, following any
// alias chain. Returns nil if no interface of that kind is registered under
// name (directly or via alias).
func (m *HandleManager) GetInterfaceHandle(name string, kind hconfig.InterfaceKind) *BasicHandleInfo {
	kk := resolveOrSelf(m.aliases, kindKey{kind: kind, name: name})
	return m.byName[kk]
}

// AddAlias records a bidirectional name equivalence between a and b for
// every interface kind, per spec §4.1.
// Cascades are idempotent; cycles are detected and treated as a no-op.
// Returns herrors.ErrDuplicateAlias if the alias would make two distinct
// concrete interfaces of the same kind resolve to the same name.
func (m *HandleManager) AddAlias(a, b string) error {
	if a == b {
		return nil
	}
	for _, kind := range allKinds {
		if err := m.addAliasForKind(kind, a, b); err != nil {
			return err
		}
	}
	return nil
}

var allKinds = []hconfig.InterfaceKind{
	hconfig.KindPublication, hconfig.KindInput, hconfig.KindEndpoint,
	hconfig.KindFilter, hconfig.KindTranslator,
}

func (m *HandleManager) addAliasForKind(kind hconfig.InterfaceKind, a, b string) error {
	ka := kindKey{kind: kind, name: a}
	kb := kindKey{kind: kind, name: b}

	ra := resolveOrSelf(m.aliases, ka)
	rb := resolveOrSelf(m.aliases, kb)
	if ra == rb {
		return nil // already unified, or a cycle that resolves to itself
	}

	ia, haveA := m.byName[ra]
	ib, haveB := m.byName[rb]
	if haveA && haveB && ia != ib {
		return herrors.New(herrors.ErrDuplicateAlias, herrors.InvalidArgument,
			"alias %q<->%q of kind %s would merge two distinct interfaces", a, b, kind)
	}

	// Canonicalize on whichever side already has a concrete interface; if
	// neither does, canonicalize on rb arbitrarily (both are futures).
	canonical, other := rb, ra
	if haveA && !haveB {
		canonical, other = ra, rb
	}
	m.aliases[other] = canonical
	if v, ok := m.byName[other]; ok {
		m.byName[canonical] = v
	}
	return nil
}

// resolveOrSelf walks the alias chain from k to its canonical key, detecting
// cycles with a set of already-visited keys.
func resolveOrSelf(aliases map[kindKey]kindKey, k kindKey) kindKey {
	visited := hset.New[kindKey](4)
	cur := k
	for {
		if visited.Contains(cur) {
			return cur // cycle; treat as no-op per spec §4.1
		}
		visited.Add(cur)
		next, ok := aliases[cur]
		if !ok || next == cur {
			return cur
		}
		cur = next
	}
}

// SetHandleOption sets an independent option bit on the handle owning gh.
func (m *HandleManager) SetHandleOption(gh idspace.GlobalHandle, opt hconfig.HandleOptions, val bool) error {
	info := m.byIndex[gh]
	if info == nil {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidObject, "unknown handle %s", gh)
	}
	info.Options = info.Options.Set(opt, val)
	return nil
}

// GetHandleOption reads an independent option bit.
func (m *HandleManager) GetHandleOption(gh idspace.GlobalHandle, opt hconfig.HandleOptions) bool {
	info := m.byIndex[gh]
	if info == nil {
		return false
	}
	return info.Options.Has(opt)
}

// All returns every catalogued handle, in registration order.
func (m *HandleManager) All() []*BasicHandleInfo {
	out := make([]*BasicHandleInfo, len(m.handles))
	copy(out, m.handles)
	return out
}
