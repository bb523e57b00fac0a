package config

import "github.com/rampart-go/rampart/utils"

const (
	ErrNoKey       = utils.Error("Config key does not exist")
	ErrInvalidType = utils.Error("Invalid destination type")
)

// ConfigProvider is a read-only configuration source
// Keys are expressed in camelCase; providers may convert them internally
type ConfigProvider interface {
	Get(dest interface{}) error
	GetKey(key string, dest interface{}) error
	GetStringKey(key string) (string, error)
	GetBoolKey(key string) (bool, error)
	GetIntKey(key string) (int, error)
	GetFloat64Key(key string) (float64, error)
	GetConfigNode(key string) (ConfigProvider, error)
	KeyExists(key string) bool
}
