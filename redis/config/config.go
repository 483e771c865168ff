package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerProperties defines global config properties
type ServerProperties struct {
	Bind string `cfg:"bind" yaml:"bind"`
	Port int    `cfg:"port" yaml:"port"`
	// MaxClients limits concurrent connections, 0 means no limit
	MaxClients int    `cfg:"maxclients" yaml:"maxclients"`
	Dir        string `cfg:"dir,omitempty" yaml:"dir"`
	// DbFilename is the snapshot file, relative to Dir
	DbFilename string `cfg:"dbfilename" yaml:"dbfilename"`
	// SnapshotFormat is json or bolt
	SnapshotFormat string `cfg:"snapshot-format" yaml:"snapshot-format"`
	MMapAtStartup  bool   `cfg:"mmap-at-startup" yaml:"mmap-at-startup"`
	// IndexType is btree or art
	IndexType string `cfg:"index-type" yaml:"index-type"`
	Shards    int    `cfg:"shards" yaml:"shards"`
	// Hz is the number of active expire passes per second, 0 disables them
	Hz          int    `cfg:"hz" yaml:"hz"`
	MetricsBind string `cfg:"metrics-bind" yaml:"metrics-bind"`
	LogDir      string `cfg:"logdir" yaml:"logdir"`
	LogName     string `cfg:"logname" yaml:"logname"`
	// config file path
	CfPath string `cfg:"cf,omitempty" yaml:"-"`
}

// Properties holds global config properties
var Properties *ServerProperties

func init() {
	Properties = Default()
}

// Default returns the properties used when no config file is given
func Default() *ServerProperties {
	return &ServerProperties{
		Bind:           "127.0.0.1",
		Port:           6379,
		Dir:            ".",
		DbFilename:     "dump.json",
		SnapshotFormat: "json",
		IndexType:      "btree",
		Shards:         16,
		Hz:             10,
	}
}

// SnapshotPath is the snapshot file location
func (p *ServerProperties) SnapshotPath() string {
	if filepath.IsAbs(p.DbFilename) {
		return p.DbFilename
	}
	return filepath.Join(p.Dir, p.DbFilename)
}

func parse(src io.Reader) (*ServerProperties, error) {
	config := Default()
	rawMap := make(map[string]string)
	// read config file
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// 判断是否当前行被注释
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		pivot := strings.IndexAny(line, " \t")
		if pivot > 0 && pivot < len(line)-1 {
			key := line[0:pivot]
			value := strings.Trim(line[pivot+1:], " \t\"")
			rawMap[strings.ToLower(key)] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// store properties into Properties
	t := reflect.TypeOf(config)
	v := reflect.ValueOf(config)
	n := t.Elem().NumField()
	for i := 0; i < n; i++ {
		field := t.Elem().Field(i)
		fieldValue := v.Elem().Field(i)
		// get key from tag if not exists, use field name
		key, ok := field.Tag.Lookup("cfg")
		if !ok || strings.TrimLeft(key, " ") == "" {
			key = field.Name
		} else {
			key = strings.Split(key, ",")[0]
		}
		value, ok := rawMap[strings.ToLower(key)]
		if ok {
			switch field.Type.Kind() {
			case reflect.String:
				fieldValue.SetString(value)
			case reflect.Int:
				intValue, err := strconv.ParseInt(value, 10, 64)
				if err == nil {
					fieldValue.SetInt(intValue)
				}
			case reflect.Bool:
				boolValue := value == "yes"
				fieldValue.SetBool(boolValue)
			}
		}
	}
	return config, nil
}

func parseYaml(src io.Reader) (*ServerProperties, error) {
	config := Default()
	if err := yaml.NewDecoder(src).Decode(config); err != nil && err != io.EOF {
		return nil, err
	}
	return config, nil
}

// SetupConfig read config file and store properties into Properties.
// Files ending in .yaml or .yml are decoded as yaml, anything else as redis.conf lines.
func SetupConfig(configFilename string) error {
	file, err := os.Open(configFilename)
	if err != nil {
		return err
	}
	defer file.Close()

	var props *ServerProperties
	switch strings.ToLower(filepath.Ext(configFilename)) {
	case ".yaml", ".yml":
		props, err = parseYaml(file)
		if err != nil {
			return err
		}
	default:
		props, err = parse(file)
		if err != nil {
			return err
		}
	}
	configFilePath, err := filepath.Abs(configFilename)
	if err == nil {
		props.CfPath = configFilePath
	}
	if props.Dir == "" {
		props.Dir = "."
	}
	Properties = props
	return nil
}
