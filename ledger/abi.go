// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

// factoryABI is the VotingFactory interface. createVoting deploys a Voting
// contract owned by the caller and announces it with VotingCreated.
const factoryABI = `[
	{"type":"function","name":"createVoting","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"candidateNames","type":"string[]"},
		{"name":"startTime","type":"uint256"},
		{"name":"endTime","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"VotingCreated","anonymous":false,
	 "inputs":[
		{"name":"votingAddress","type":"address","indexed":true},
		{"name":"admin","type":"address","indexed":true}]}
]`

// votingABI is the per-election Voting contract.
const votingABI = `[
	{"type":"function","name":"authorizeVoters","stateMutability":"nonpayable",
	 "inputs":[{"name":"voters","type":"address[]"}],"outputs":[]},
	{"type":"function","name":"vote","stateMutability":"nonpayable",
	 "inputs":[{"name":"candidateIndex","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"stopVoting","stateMutability":"nonpayable",
	 "inputs":[],"outputs":[]},
	{"type":"function","name":"getResults","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"name","type":"string"},
		{"name":"voteCount","type":"uint256"}]}]},
	{"type":"function","name":"votingActive","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"hasVoted","stateMutability":"view",
	 "inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"authorizedVoters","stateMutability":"view",
	 "inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"admin","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]}
]`
