// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Sources

Each setting is taken from the first source that has it:

 1. CLI flag
 2. Environment variable (a .env file is loaded first, see -env)
 3. YAML config file given with -c
 4. Default

# Settings

	-p                PORT                    port (default 3318)
	-d                DATABASE_URL            required
	-t                DATABASE_TYPE           sqlite (default) or postgres
	-jwt-secret       JWT_SECRET              required
	-ledger           LEDGER_MODE             memory (default) or evm
	-rpc              LEDGER_RPC_URL          required for evm
	                  LEDGER_PRIVATE_KEY      required for evm
	-factory          LEDGER_FACTORY_ADDRESS  required for evm
	                  LEDGER_VOTER_KEYS       comma-separated, dev chains only
	-confirm-timeout  CONFIRM_TIMEOUT         default 2m
	-log-level        LOG_LEVEL               debug, info, warn, error

The private key has no flag so it never shows up in process listings.

# Config File

	port: 3318
	database:
	  url: postgres://...
	  type: postgres
	jwt_secret: ...
	ledger:
	  mode: evm
	  rpc_url: http://localhost:8545
	  private_key: 0x...
	  factory_address: 0x...
	  confirm_timeout: 90s
	log_level: info
*/
package cliparse
