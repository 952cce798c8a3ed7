// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "PlantDiag")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/plantdiag.log")
	viper.SetDefault("main.log.maxsize", 10)
	viper.SetDefault("main.log.maxage", 30)
	viper.SetDefault("main.log.rotation", 3)

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.port", "8000")

	viper.SetDefault("inference.baseurl", "https://detect.roboflow.com")
	viper.SetDefault("inference.apikey", "")
	viper.SetDefault("inference.plantmodel", "plantvillage-dataset/1")
	viper.SetDefault("inference.ricemodel", "rice-diseases-qzjka/3")
	viper.SetDefault("inference.timeout", 10*time.Second)
	viper.SetDefault("inference.maxuploadsize", 10*1024*1024)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "diagnoses.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "plantdiag")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "plantdiag")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("output.file.enabled", false)
	viper.SetDefault("output.file.path", "diagnoses.jsonl")
}
