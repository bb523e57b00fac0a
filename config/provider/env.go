package provider

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/gobeam/stringy"
	"github.com/rampart-go/rampart/config"
)

const CommaSeparator = ","

// EnvProvider builds a config.ConfigProvider from system environment variables
// All variables matching the prefix are loaded on creation; key lookups are
// converted from camelCase to SNAKE_CASE when convertCase is enabled
type EnvProvider struct {
	prefix      string
	configData  map[string]string
	convertCase bool
}

// NewEnvProvider creates an EnvProvider with the given key prefix
func NewEnvProvider(prefix string, convertCamelCase bool) *EnvProvider {
	provider := &EnvProvider{
		prefix:      prefix,
		configData:  make(map[string]string),
		convertCase: convertCamelCase,
	}
	provider.load()
	return provider
}

func (e *EnvProvider) load() {
	for _, env := range os.Environ() {
		toks := strings.SplitN(env, "=", 2)
		if strings.HasPrefix(toks[0], e.prefix) {
			e.configData[toks[0]] = toks[1]
		}
	}
}

func (e *EnvProvider) convertKey(key string) string {
	if e.convertCase {
		return stringy.New(key).SnakeCase("?", "").ToUpper()
	}
	return key
}

func (e *EnvProvider) lookup(key string) (string, bool) {
	v, ok := e.configData[e.prefix+e.convertKey(key)]
	return v, ok
}

// Get fills dest struct fields from environment values, using json tags as key names
func (e *EnvProvider) Get(dest interface{}) error {
	return e.readStruct("", dest)
}

// GetKey fills dest struct fields using key as an additional prefix
func (e *EnvProvider) GetKey(key string, dest interface{}) error {
	return e.readStruct(e.convertKey(key)+"_", dest)
}

func (e *EnvProvider) readStruct(keyPrefix string, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return config.ErrInvalidType
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("json")
		if name == "" {
			name = field.Name
		} else {
			name = strings.Split(name, ",")[0]
		}

		raw, exists := e.configData[e.prefix+keyPrefix+e.convertKey(name)]
		if !exists {
			continue
		}

		target := v.Field(i)
		if !target.CanSet() {
			continue
		}

		switch target.Kind() {
		case reflect.String:
			target.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return err
			}
			target.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return err
			}
			target.SetBool(b)
		case reflect.Float64:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return err
			}
			target.SetFloat(f)
		case reflect.Slice:
			if target.Type().Elem().Kind() == reflect.String {
				target.Set(reflect.ValueOf(strings.Split(raw, CommaSeparator)))
			}
		default:
			// unsupported field types are skipped
		}
	}
	return nil
}

// GetStringKey fetches a string value
func (e *EnvProvider) GetStringKey(key string) (string, error) {
	v, ok := e.lookup(key)
	if !ok {
		return "", config.ErrNoKey
	}
	return v, nil
}

// GetBoolKey fetches a boolean value
func (e *EnvProvider) GetBoolKey(key string) (bool, error) {
	v, ok := e.lookup(key)
	if !ok {
		return false, config.ErrNoKey
	}
	return strconv.ParseBool(v)
}

// GetIntKey fetches an integer value
func (e *EnvProvider) GetIntKey(key string) (int, error) {
	v, ok := e.lookup(key)
	if !ok {
		return 0, config.ErrNoKey
	}
	return strconv.Atoi(v)
}

// GetFloat64Key fetches a float value
func (e *EnvProvider) GetFloat64Key(key string) (float64, error) {
	v, ok := e.lookup(key)
	if !ok {
		return 0, config.ErrNoKey
	}
	return strconv.ParseFloat(v, 64)
}

// GetConfigNode returns a provider scoped to the given key prefix
func (e *EnvProvider) GetConfigNode(key string) (config.ConfigProvider, error) {
	return &EnvProvider{
		prefix:      e.prefix + e.convertKey(key) + "_",
		configData:  e.configData,
		convertCase: e.convertCase,
	}, nil
}

// KeyExists returns true if the key is present
func (e *EnvProvider) KeyExists(key string) bool {
	_, ok := e.lookup(key)
	return ok
}
