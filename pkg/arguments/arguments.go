package arguments

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppMetadata :
// Describes some properties used to identify the current
// instance of the application. Most of these information
// will be used during the logging process to provide some
// context to messages and distinguish among running
// instances of the application.
//
// The `InstanceID` describes an identifier of the current
// instance of the server. This value is generated at runtime
// and is meant to be unique and change upon restart of the
// application on the same machine.
//
// The `Environment` is a string describing the configuration
// used to start this application. Typical values include
// `development`, `production`, etc.
// The default value is "unknown".
//
// The `Port` specifies on which port the end points defined
// by the app can be accessed.
// The default value is 3000.
type AppMetadata struct {
	InstanceID  string `json:"instance_id"`
	Environment string `json:"environment"`
	Port        int    `json:"port"`
}

// Parse :
// Used to parse the app arguments and produce the corresponding
// metadata. Configuration values are fetched from an optional
// `.env` file, from environment variables prefixed with `ENV_`
// and from the configuration file whose name is provided as
// input. Environment variables take precedence over the file
// so that deployments can override individual options.
//
// The `configFile` is a string describing the name of the
// configuration file without its extension. When empty, only
// the environment is used to configure the application.
//
// This function returns the built-in application's properties.
func Parse(configFile string) AppMetadata {
	// Load an optional `.env` file before viper binds the
	// environment. A missing file is not an error.
	godotenv.Load()

	viper.SetEnvPrefix("ENV")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	// Fetch the configuration file from the working directory
	// or the common `data/config` directory when provided.
	if len(configFile) > 0 {
		viper.SetConfigName(configFile)
		viper.AddConfigPath(".")
		viper.AddConfigPath("data/config")

		err := viper.ReadInConfig()
		if err != nil {
			panic(fmt.Errorf("could not parse input configuration \"%s\" (err: %v)", configFile, err))
		}
	}

	// Create the default application properties.
	metadata := AppMetadata{
		uuid.New().String(),
		"unknown",
		3000,
	}

	if len(configFile) > 0 {
		metadata.Environment = configFile
	}
	if viper.IsSet("App.Port") {
		metadata.Port = viper.GetInt("App.Port")
	}

	return metadata
}
