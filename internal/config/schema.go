package config

// Schema is the JSON Schema configuration files are validated against
// before being decoded, per §3's Configuration shape.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "files": {"type": "array", "items": {"type": "string"}},
    "suites": {"type": "array", "items": {"type": "string"}},
    "filter": {"type": "array", "items": {"type": "string"}},
    "exclude": {"type": "array", "items": {"type": "string"}},
    "bail": {"type": "boolean"},
    "watch": {"type": "boolean"},
    "parallel": {"type": "integer", "minimum": 1},
    "timeoutMs": {"type": "integer", "minimum": 0},
    "randomize": {"type": "boolean"},
    "logLevel": {"enum": ["silent", "error", "warn", "info", "debug"]},
    "reporter": {"type": "string"},
    "outputFile": {"type": "string"},
    "verbose": {"type": "boolean"},
    "userArgv": {"type": "object"},
    "build": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "minify": {"type": "boolean"},
        "target": {"type": "string"},
        "external": {"type": "array", "items": {"type": "string"}},
        "sourcemap": {"type": "boolean"}
      }
    },
    "testRunners": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "address"],
        "properties": {
          "id": {"type": "string", "maxLength": 14},
          "name": {"type": "string"},
          "address": {"type": "string"},
          "command": {"type": "string"},
          "connectionTimeoutMs": {"type": "integer", "minimum": 0},
          "dispatchTimeoutMs": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`
