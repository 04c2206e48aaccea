// Package config загружает конфигурацию Reel через viper.
package config
