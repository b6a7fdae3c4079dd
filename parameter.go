package sqlreplay

import (
	"fmt"
	"strings"
	"sync"

	"github.com/anacrolix/sqlreplay/fingerprint"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

type parameter struct {
	mu   sync.Mutex
	desc ParameterDescriptor
}

func (me *parameter) snapshot() fingerprint.Parameter {
	me.mu.Lock()
	defer me.mu.Unlock()
	return fingerprint.Parameter{
		Name:      me.desc.Name,
		Value:     sqltypes.FromWire(me.desc.Value),
		Type:      me.desc.Type,
		Nullable:  me.desc.Nullable,
		Direction: me.desc.Direction,
		Scale:     me.desc.Scale,
		Size:      me.desc.Size,
	}
}

func (me *parameter) name() string {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.desc.Name
}

// CreateParameter makes a parameter owned by the command. It is not in the
// command's collection until added.
func (me *Service) CreateParameter(args CommandArgs, reply *ParameterHandle) (err error) {
	defer me.guard("CreateParameter", &err)
	if _, err = me.cmds.Get(args.Command); err != nil {
		return
	}
	h, err := me.params.Add(&parameter{desc: ParameterDescriptor{
		Direction:     sqltypes.DirectionInput,
		SourceVersion: sqltypes.RowCurrent,
	}})
	if err != nil {
		return
	}
	me.owners.Record(args.Command, h)
	// The command may have been disposed since it was looked up, in which case
	// its release could have missed h.
	if _, err = me.cmds.Get(args.Command); err != nil {
		me.owners.ReleaseAll(args.Command, me.removeParameter)
		me.params.Remove(h)
		return
	}
	*reply = h
	return
}

func (me *Service) checkOwner(cmd CommandHandle, p ParameterHandle) error {
	if _, err := me.params.Get(p); err != nil {
		return err
	}
	if !me.owners.IsOwnedBy(p, cmd) {
		return fmt.Errorf("%w: parameter %v was not created by command %v", ErrOwnershipViolation, p, cmd)
	}
	return nil
}

// collection locks the command's parameter collection for f. Ownership of p,
// if given, is checked first.
func (me *Service) collection(h CommandHandle, p *ParameterHandle, f func(cmd *command) error) error {
	cmd, err := me.cmds.Get(h)
	if err != nil {
		return err
	}
	if p != nil {
		if err := me.checkOwner(h, *p); err != nil {
			return err
		}
	}
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	return f(cmd)
}

func (me *command) indexOf(p ParameterHandle) int {
	for i, h := range me.params {
		if h == p {
			return i
		}
	}
	return -1
}

// indexNamed prefers an exact match, then a case-insensitive one.
func (me *Service) indexNamed(cmd *command, name string) int {
	fold := -1
	for i, h := range cmd.params {
		p, err := me.params.Get(h)
		if err != nil {
			continue
		}
		n := p.name()
		if n == name {
			return i
		}
		if fold < 0 && strings.EqualFold(n, name) {
			fold = i
		}
	}
	return fold
}

func (me *command) checkIndex(i int) error {
	if i < 0 || i >= len(me.params) {
		return fmt.Errorf("%w: index %d, collection has %d", ErrParameterNotFound, i, len(me.params))
	}
	return nil
}

func notNamed(name string) error {
	return fmt.Errorf("%w: no parameter named %q", ErrParameterNotFound, name)
}

func alreadyContained(p ParameterHandle) error {
	return fmt.Errorf("parameter %v is already in the collection", p)
}

func (me *Service) AddParameter(args ParameterArgs, reply *int) (err error) {
	defer me.guard("AddParameter", &err)
	return me.collection(args.Command, &args.Param, func(cmd *command) error {
		if cmd.indexOf(args.Param) >= 0 {
			return alreadyContained(args.Param)
		}
		cmd.params = append(cmd.params, args.Param)
		*reply = len(cmd.params) - 1
		return nil
	})
}

func (me *Service) InsertParameter(args InsertParameterArgs, reply *struct{}) (err error) {
	defer me.guard("InsertParameter", &err)
	return me.collection(args.Command, &args.Param, func(cmd *command) error {
		if args.Index < 0 || args.Index > len(cmd.params) {
			return fmt.Errorf("%w: insert index %d, collection has %d", ErrParameterNotFound, args.Index, len(cmd.params))
		}
		if cmd.indexOf(args.Param) >= 0 {
			return alreadyContained(args.Param)
		}
		cmd.params = append(cmd.params, ParameterHandle{})
		copy(cmd.params[args.Index+1:], cmd.params[args.Index:])
		cmd.params[args.Index] = args.Param
		return nil
	})
}

func (me *command) removeAt(i int) {
	me.params = append(me.params[:i], me.params[i+1:]...)
}

// RemoveParameter takes the parameter out of the collection. It stays owned by
// the command and can be added again.
func (me *Service) RemoveParameter(args ParameterArgs, reply *struct{}) (err error) {
	defer me.guard("RemoveParameter", &err)
	return me.collection(args.Command, &args.Param, func(cmd *command) error {
		i := cmd.indexOf(args.Param)
		if i < 0 {
			return fmt.Errorf("%w: parameter %v is not in the collection", ErrParameterNotFound, args.Param)
		}
		cmd.removeAt(i)
		return nil
	})
}

func (me *Service) RemoveParameterAt(args IndexArgs, reply *struct{}) (err error) {
	defer me.guard("RemoveParameterAt", &err)
	return me.collection(args.Command, nil, func(cmd *command) error {
		if err := cmd.checkIndex(args.Index); err != nil {
			return err
		}
		cmd.removeAt(args.Index)
		return nil
	})
}

func (me *Service) RemoveParameterNamed(args NameArgs, reply *struct{}) (err error) {
	defer me.guard("RemoveParameterNamed", &err)
	return me.collection(args.Command, nil, func(cmd *command) error {
		i := me.indexNamed(cmd, args.Name)
		if i < 0 {
			return notNamed(args.Name)
		}
		cmd.removeAt(i)
		return nil
	})
}

// ClearParameters empties the collection and destroys every parameter the
// command created.
func (me *Service) ClearParameters(args CommandArgs, reply *struct{}) (err error) {
	defer me.guard("ClearParameters", &err)
	err = me.collection(args.Command, nil, func(cmd *command) error {
		cmd.params = nil
		return nil
	})
	if err != nil {
		return
	}
	me.owners.ReleaseAll(args.Command, me.removeParameter)
	return
}

func (me *Service) ParameterCount(args CommandArgs, reply *int) (err error) {
	defer me.guard("ParameterCount", &err)
	return me.collection(args.Command, nil, func(cmd *command) error {
		*reply = len(cmd.params)
		return nil
	})
}

// Parameters lists the collection in order.
func (me *Service) Parameters(args CommandArgs, reply *[]ParameterHandle) (err error) {
	defer me.guard("Parameters", &err)
	return me.collection(args.Command, nil, func(cmd *command) error {
		*reply = append([]ParameterHandle(nil), cmd.params...)
		return nil
	})
}

// OwnedParameters lists every parameter the command created, in creation order.
func (me *Service) OwnedParameters(args CommandArgs, reply *[]ParameterHandle) (err error) {
	defer me.guard("OwnedParameters", &err)
	if _, err = me.cmds.Get(args.Command); err != nil {
		return
	}
	*reply = me.owners.ListOwned(args.Command)
	return
}

func (me *Service) ContainsParameter(args ParameterArgs, reply *bool) (err error) {
	defer me.guard("ContainsParameter", &err)
	return me.collection(args.Command, &args.Param, func(cmd *command) error {
		*reply = cmd.indexOf(args.Param) >= 0
		return nil
	})
}

func (me *Service) ContainsParameterNamed(args NameArgs, reply *bool) (err error) {
	defer me.guard("ContainsParameterNamed", &err)
	return me.collection(args.Command, nil, func(cmd *command) error {
		*reply = me.indexNamed(cmd, args.Name) >= 0
		return nil
	})
}

func (me *Service) IndexOfParameter(args ParameterArgs, reply *int) (err error) {
	defer me.guard("IndexOfParameter", &err)
	return me.collection(args.Command, &args.Param, func(cmd *command) error {
		*reply = cmd.indexOf(args.Param)
		return nil
	})
}

func (me *Service) IndexOfParameterNamed(args NameArgs, reply *int) (err error) {
	defer me.guard("IndexOfParameterNamed", &err)
	return me.collection(args.Command, nil, func(cmd *command) error {
		*reply = me.indexNamed(cmd, args.Name)
		return nil
	})
}

func (me *Service) ParameterAt(args IndexArgs, reply *ParameterHandle) (err error) {
	defer me.guard("ParameterAt", &err)
	return me.collection(args.Command, nil, func(cmd *command) error {
		if err := cmd.checkIndex(args.Index); err != nil {
			return err
		}
		*reply = cmd.params[args.Index]
		return nil
	})
}

// replace puts p at i. p may already be at i, but nowhere else.
func (me *command) replace(i int, p ParameterHandle) error {
	if j := me.indexOf(p); j >= 0 && j != i {
		return alreadyContained(p)
	}
	me.params[i] = p
	return nil
}

func (me *Service) SetParameterAt(args InsertParameterArgs, reply *struct{}) (err error) {
	defer me.guard("SetParameterAt", &err)
	return me.collection(args.Command, &args.Param, func(cmd *command) error {
		if err := cmd.checkIndex(args.Index); err != nil {
			return err
		}
		return cmd.replace(args.Index, args.Param)
	})
}

func (me *Service) ParameterNamed(args NameArgs, reply *ParameterHandle) (err error) {
	defer me.guard("ParameterNamed", &err)
	return me.collection(args.Command, nil, func(cmd *command) error {
		i := me.indexNamed(cmd, args.Name)
		if i < 0 {
			return notNamed(args.Name)
		}
		*reply = cmd.params[i]
		return nil
	})
}

func (me *Service) SetParameterNamed(args SetParameterNamedArgs, reply *struct{}) (err error) {
	defer me.guard("SetParameterNamed", &err)
	return me.collection(args.Command, &args.Param, func(cmd *command) error {
		i := me.indexNamed(cmd, args.Name)
		if i < 0 {
			return notNamed(args.Name)
		}
		return cmd.replace(i, args.Param)
	})
}

func (me *Service) GetParameter(args ParameterHandleArgs, reply *ParameterDescriptor) (err error) {
	defer me.guard("GetParameter", &err)
	p, err := me.params.Get(args.Param)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	*reply = p.desc
	return
}

func (me *Service) SetParameter(args SetParameterArgs, reply *struct{}) (err error) {
	defer me.guard("SetParameter", &err)
	p, err := me.params.Get(args.Param)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	d, f := &p.desc, args.Fields
	if f&ParameterFieldName != 0 {
		d.Name = args.Name
	}
	if f&ParameterFieldDirection != 0 {
		d.Direction = args.Direction
	}
	if f&ParameterFieldType != 0 {
		d.Type = args.Type
	}
	if f&ParameterFieldPrecision != 0 {
		d.Precision = args.Precision
	}
	if f&ParameterFieldScale != 0 {
		d.Scale = args.Scale
	}
	if f&ParameterFieldSize != 0 {
		d.Size = args.Size
	}
	if f&ParameterFieldNullable != 0 {
		d.Nullable = args.Nullable
	}
	if f&ParameterFieldSourceColumn != 0 {
		d.SourceColumn = args.SourceColumn
	}
	if f&ParameterFieldSourceColumnNullMapping != 0 {
		d.SourceColumnNullMapping = args.SourceColumnNullMapping
	}
	if f&ParameterFieldSourceVersion != 0 {
		d.SourceVersion = args.SourceVersion
	}
	if f&ParameterFieldValue != 0 {
		d.Value = args.Value
	}
	return
}
