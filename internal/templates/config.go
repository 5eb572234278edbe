package templates

import "os"

const configTemplate = `
atelier_home: ~/.atelier
models_dir: ~/.atelier/models
temp_dir: ~/.atelier/temp
environment: dev

# Numeric precision recorded for installed checkpoints: float16 or float32.
precision: float16

# Directory scanned for model files on startup when autoscan is enabled.
scan_directory: ""
autoscan_on_startup: false
`

const envTemplate = `
# Hugging Face access token used for gated repositories.
# ATELIER_HF_TOKEN=

# Override the atelier home directory.
# ATELIER_HOME=~/.atelier
`

func GetConfigTemplate() string {
	return configTemplate
}

func WriteConfig(path string) error {
	return writeTemplate(path, GetConfigTemplate())
}

func WriteEnv(path string) error {
	return writeTemplate(path, envTemplate)
}

func writeTemplate(path string, content string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(content)
	if err != nil {
		return err
	}

	return nil
}
