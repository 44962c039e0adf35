package grumble

import "strings"

// Cf. private variables at: http://handlebarsjs.com/block_helpers.html

// A frame-variable map: the values behind @index, @key, @first, @last and
// any variables a partial call or helper sets. Frames chain to their
// caller, which "../" prefixed lookups walk.
type DataFrame struct {
	parent *DataFrame
	data   map[string]Value
}

// Instanciates a new frame-variable map.
func NewDataFrame() *DataFrame {
	return &DataFrame{
		data: make(map[string]Value),
	}
}

// Returns a new frame with the same variables, with parent set to self.
func (p *DataFrame) Copy() *DataFrame {
	result := NewDataFrame()

	for k, v := range p.data {
		result.data[k] = v
	}

	result.parent = p

	return result
}

// Returns the frame for one iteration step of a collection of the given
// length.
func (p *DataFrame) newIterFrame(length int, i int, key string) *DataFrame {
	result := p.Copy()

	result.Set("index", JSON(i))
	result.Set("key", JSON(key))
	result.Set("first", JSON(i == 0))
	result.Set("last", JSON(i == length-1))

	return result
}

// Sets a frame variable.
func (p *DataFrame) Set(key string, val Value) {
	p.data[key] = val
}

// Gets a frame variable.
func (p *DataFrame) Get(key string) (Value, bool) {
	return p.Find([]string{key})
}

// Gets a deep frame variable. Leading ".." parts walk the parent chain,
// the remaining parts navigate into the variable's value.
func (p *DataFrame) Find(parts []string) (Value, bool) {
	frame := p

	for len(parts) > 0 && parts[0] == ".." {
		if frame.parent == nil {
			return nil, false
		}
		frame = frame.parent
		parts = parts[1:]
	}

	if len(parts) == 0 {
		return nil, false
	}

	val, ok := frame.data[strings.TrimPrefix(parts[0], "@")]
	if !ok {
		return nil, false
	}

	for _, part := range parts[1:] {
		val, ok = val.Get(part)
		if !ok {
			return nil, false
		}
	}

	return val, true
}
