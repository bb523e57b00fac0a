package provider

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/rampart-go/rampart/config"
	"github.com/rampart-go/rampart/utils"
)

const (
	ErrJsonInvalidSource = utils.Error("NewJsonProvider: Invalid source type")
)

// JsonProvider implements config.ConfigProvider on top of a JSON document
type JsonProvider struct {
	configData map[string]json.RawMessage
	m          sync.RWMutex
}

// NewJsonProvider builds a JsonProvider from a json.RawMessage, []byte,
// io.Reader, or a string holding a file name
func NewJsonProvider(src interface{}) (config.ConfigProvider, error) {
	provider := &JsonProvider{
		configData: make(map[string]json.RawMessage),
	}
	switch v := src.(type) {
	case json.RawMessage:
		if err := json.Unmarshal(v, &provider.configData); err != nil {
			return nil, err
		}

	case []byte:
		if err := json.Unmarshal(v, &provider.configData); err != nil {
			return nil, err
		}

	case io.Reader:
		buf, err := io.ReadAll(v)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal(buf, &provider.configData); err != nil {
			return nil, err
		}

	case string:
		buf, err := os.ReadFile(v)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal(buf, &provider.configData); err != nil {
			return nil, err
		}

	default:
		return nil, ErrJsonInvalidSource
	}
	return provider, nil
}

// Get unmarshals the whole document into dest
func (j *JsonProvider) Get(dest interface{}) error {
	j.m.RLock()
	defer j.m.RUnlock()
	buf, err := json.Marshal(j.configData)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, dest)
}

// GetKey unmarshals the value of key into dest
func (j *JsonProvider) GetKey(key string, dest interface{}) error {
	j.m.RLock()
	defer j.m.RUnlock()
	raw, ok := j.configData[key]
	if !ok {
		return config.ErrNoKey
	}
	return json.Unmarshal(raw, dest)
}

// GetStringKey fetches a string value
func (j *JsonProvider) GetStringKey(key string) (string, error) {
	var result string
	err := j.GetKey(key, &result)
	return result, err
}

// GetBoolKey fetches a boolean value
func (j *JsonProvider) GetBoolKey(key string) (bool, error) {
	var result bool
	err := j.GetKey(key, &result)
	return result, err
}

// GetIntKey fetches an integer value
func (j *JsonProvider) GetIntKey(key string) (int, error) {
	var result int
	err := j.GetKey(key, &result)
	return result, err
}

// GetFloat64Key fetches a float value
func (j *JsonProvider) GetFloat64Key(key string) (float64, error) {
	var result float64
	err := j.GetKey(key, &result)
	return result, err
}

// GetConfigNode returns a provider for a nested JSON object
func (j *JsonProvider) GetConfigNode(key string) (config.ConfigProvider, error) {
	j.m.RLock()
	raw, ok := j.configData[key]
	j.m.RUnlock()
	if !ok {
		return nil, config.ErrNoKey
	}
	return NewJsonProvider(raw)
}

// KeyExists returns true if the key is present
func (j *JsonProvider) KeyExists(key string) bool {
	j.m.RLock()
	defer j.m.RUnlock()
	_, ok := j.configData[key]
	return ok
}
