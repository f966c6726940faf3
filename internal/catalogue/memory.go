package catalogue

// MapCatalogue is a trivial in-memory Catalogue, keyed by library NID.
// It exists for tests and for driver code that has already parsed an
// import-description file into plain data.
type MapCatalogue struct {
	libraries map[uint32]Library
}

var _ Catalogue = (*MapCatalogue)(nil)

// NewMapCatalogue builds a MapCatalogue from the given libraries.
func NewMapCatalogue(libraries ...*MapLibrary) *MapCatalogue {
	c := &MapCatalogue{libraries: make(map[uint32]Library, len(libraries))}
	for _, lib := range libraries {
		c.libraries[lib.nid] = lib
	}
	return c
}

func (c *MapCatalogue) Library(nid uint32) (Library, bool) {
	lib, ok := c.libraries[nid]
	return lib, ok
}

type MapLibrary struct {
	nid     uint32
	name    string
	modules map[uint32]Module
}

var _ Library = (*MapLibrary)(nil)

func NewMapLibrary(nid uint32, name string, modules ...*MapModule) *MapLibrary {
	l := &MapLibrary{nid: nid, name: name, modules: make(map[uint32]Module, len(modules))}
	for _, mod := range modules {
		l.modules[mod.nid] = mod
	}
	return l
}

func (l *MapLibrary) NID() uint32  { return l.nid }
func (l *MapLibrary) Name() string { return l.name }

func (l *MapLibrary) Module(nid uint32) (Module, bool) {
	mod, ok := l.modules[nid]
	return mod, ok
}

type MapModule struct {
	nid       uint32
	name      string
	functions map[uint32]Target
	variables map[uint32]Target
}

var _ Module = (*MapModule)(nil)

func NewMapModule(nid uint32, name string) *MapModule {
	return &MapModule{
		nid:       nid,
		name:      name,
		functions: make(map[uint32]Target),
		variables: make(map[uint32]Target),
	}
}

func (m *MapModule) NID() uint32  { return m.nid }
func (m *MapModule) Name() string { return m.name }

func (m *MapModule) WithFunction(nid uint32, name string) *MapModule {
	m.functions[nid] = mapTarget{nid: nid, name: name}
	return m
}

func (m *MapModule) WithVariable(nid uint32, name string) *MapModule {
	m.variables[nid] = mapTarget{nid: nid, name: name}
	return m
}

func (m *MapModule) TargetFunction(nid uint32) (Target, bool) {
	t, ok := m.functions[nid]
	return t, ok
}

func (m *MapModule) TargetVariable(nid uint32) (Target, bool) {
	t, ok := m.variables[nid]
	return t, ok
}

type mapTarget struct {
	nid  uint32
	name string
}

func (t mapTarget) NID() uint32  { return t.nid }
func (t mapTarget) Name() string { return t.name }
