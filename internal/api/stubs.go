package api

import (
	"reflect"

	"github.com/lfcarvalho/distfs/internal/path"
	"github.com/lfcarvalho/distfs/internal/rpc"
)

var (
	serviceType      = reflect.TypeOf((*Service)(nil)).Elem()
	registrationType = reflect.TypeOf((*Registration)(nil)).Elem()
	storageType      = reflect.TypeOf((*Storage)(nil)).Elem()
	commandType      = reflect.TypeOf((*Command)(nil)).Elem()
)

// ServiceStub is the generated client proxy for Service.
type ServiceStub struct{ rpc.Stub }

func NewServiceStub(network, address string) (ServiceStub, error) {
	s, err := rpc.NewStub(serviceType, network, address)
	return ServiceStub{s}, err
}

func (s ServiceStub) IsDirectory(p path.Path) (bool, error) {
	result, err := s.Invoke("IsDirectory", p)
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (s ServiceStub) List(d path.Path) ([]string, error) {
	result, err := s.Invoke("List", d)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.([]string), nil
}

func (s ServiceStub) CreateFile(p path.Path) (bool, error) {
	result, err := s.Invoke("CreateFile", p)
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (s ServiceStub) CreateDirectory(p path.Path) (bool, error) {
	result, err := s.Invoke("CreateDirectory", p)
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (s ServiceStub) Delete(p path.Path) (bool, error) {
	result, err := s.Invoke("Delete", p)
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (s ServiceStub) GetStorage(p path.Path) (StorageHandle, error) {
	result, err := s.Invoke("GetStorage", p)
	if err != nil {
		return StorageHandle{}, err
	}
	return result.(StorageHandle), nil
}

func (s ServiceStub) Lock(p path.Path, exclusive bool) error {
	_, err := s.Invoke("Lock", p, exclusive)
	return err
}

func (s ServiceStub) Unlock(p path.Path, exclusive bool) error {
	_, err := s.Invoke("Unlock", p, exclusive)
	return err
}

// RegistrationStub is the generated client proxy for Registration.
type RegistrationStub struct{ rpc.Stub }

func NewRegistrationStub(network, address string) (RegistrationStub, error) {
	s, err := rpc.NewStub(registrationType, network, address)
	return RegistrationStub{s}, err
}

func (s RegistrationStub) Register(client StorageHandle, command CommandHandle, files []path.Path) ([]path.Path, error) {
	result, err := s.Invoke("Register", client, command, files)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.([]path.Path), nil
}

// StorageStub is the generated client proxy for Storage.
// NewStorageStubFromHandle is how a client, or a storage server running
// Copy, rehydrates a StorageHandle received over the wire into something
// callable.
type StorageStub struct{ rpc.Stub }

func NewStorageStub(network, address string) (StorageStub, error) {
	s, err := rpc.NewStub(storageType, network, address)
	return StorageStub{s}, err
}

func NewStorageStubFromHandle(h StorageHandle) (StorageStub, error) {
	return NewStorageStub(h.Network, h.Address)
}

func (s StorageStub) Handle() StorageHandle {
	return StorageHandle{Network: s.Network(), Address: s.Address()}
}

func (s StorageStub) Size(p path.Path) (int64, error) {
	result, err := s.Invoke("Size", p)
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (s StorageStub) Read(p path.Path, offset int64, length int32) ([]byte, error) {
	result, err := s.Invoke("Read", p, offset, length)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.([]byte), nil
}

func (s StorageStub) Write(p path.Path, offset int64, data []byte) error {
	_, err := s.Invoke("Write", p, offset, data)
	return err
}

// CommandStub is the generated client proxy for Command.
type CommandStub struct{ rpc.Stub }

func NewCommandStub(network, address string) (CommandStub, error) {
	s, err := rpc.NewStub(commandType, network, address)
	return CommandStub{s}, err
}

func NewCommandStubFromHandle(h CommandHandle) (CommandStub, error) {
	return NewCommandStub(h.Network, h.Address)
}

func (s CommandStub) Handle() CommandHandle {
	return CommandHandle{Network: s.Network(), Address: s.Address()}
}

func (s CommandStub) Create(p path.Path) (bool, error) {
	result, err := s.Invoke("Create", p)
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (s CommandStub) Delete(p path.Path) (bool, error) {
	result, err := s.Invoke("Delete", p)
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (s CommandStub) Copy(p path.Path, source StorageHandle) (bool, error) {
	result, err := s.Invoke("Copy", p, source)
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}
