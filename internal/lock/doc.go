// Package lock — межпроцессный лок на job поверх Redis.
//
// Нужен, когда jobs продвигают несколько процессов reel-engine:
// оркестратор берёт лок перед циклом advance и держит его до конца цикла.
package lock
