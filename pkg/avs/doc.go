// Package avs provides a software device client for the Alexa Voice Service.
//
// It sends Recognize, APL UserEvent, SynchronizeState and SettingsUpdated events as
// HTTP/2 multipart requests, keeps a downchannel stream open for pushed SkillDebugger
// directives, and applies the returned directives to per-client conversation state.
package avs
