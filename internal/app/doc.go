// Package app собирает компоненты Reel по конфигурации:
// хранилище, брокер, лок и движок. Используется cmd/reel-api и cmd/reel-engine.
package app
