// Package logger — единый вывод логов rate-track с префиксом и учётом quiet.
package logger

import "log"

// Prefix добавляется к каждому сообщению.
const Prefix = "rate-track: "

// Quiet при true отключает информационные сообщения (Info, Warn); Error выводится всегда.
var Quiet bool

// Info выводит сообщение с префиксом, если Quiet == false.
func Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	log.Printf(Prefix+format, args...)
}

// Warn — аномалии, которые не прерывают работу (например, регресс времени).
func Warn(format string, args ...interface{}) {
	if Quiet {
		return
	}
	log.Printf(Prefix+"warning: "+format, args...)
}

// Error выводит сообщение об ошибке с префиксом всегда.
func Error(format string, args ...interface{}) {
	log.Printf(Prefix+format, args...)
}
