package registry

import (
	"fmt"
	"sort"
	"strings"
)

// SupportedABITypes is the closed set of ABI families queries may target.
var SupportedABITypes = map[string]bool{"ERC20": true}

// FunctionArg describes one declared argument of a registry function.
type FunctionArg struct {
	Name        string
	Type        string
	Description string
	Example     string
}

// FunctionMetadata is a static registry entry for a queryable function.
// It is configuration data and never mutates at runtime.
type FunctionMetadata struct {
	Name               string
	Description        string
	Args               []FunctionArg
	ReturnType         string
	ReturnDescription  string
	DecimalsAdjustment bool
	ExampleQuestion    string
}

var erc20Functions = map[string]FunctionMetadata{
	"totalSupply": {
		Name:               "totalSupply",
		Description:        "Get the total supply of tokens",
		ReturnType:         "uint256",
		ReturnDescription:  "Total number of tokens in existence",
		DecimalsAdjustment: true,
		ExampleQuestion:    "What is the total supply of USDC?",
	},
	"decimals": {
		Name:              "decimals",
		Description:       "Get the number of decimals used for token amounts",
		ReturnType:        "uint8",
		ReturnDescription: "Number of decimals",
		ExampleQuestion:   "How many decimals does USDC have?",
	},
	"symbol": {
		Name:              "symbol",
		Description:       "Get the token's symbol",
		ReturnType:        "string",
		ReturnDescription: "Token symbol",
		ExampleQuestion:   "What is the symbol of USDC?",
	},
	"name": {
		Name:              "name",
		Description:       "Get the token's name",
		ReturnType:        "string",
		ReturnDescription: "Token name",
		ExampleQuestion:   "What is the full name of USDC?",
	},
	"balanceOf": {
		Name:        "balanceOf",
		Description: "Get the token balance of an address",
		Args: []FunctionArg{
			{
				Name:        "owner",
				Type:        "address",
				Description: "Address to check balance for",
				Example:     "0x1234567890123456789012345678901234567890",
			},
		},
		ReturnType:         "uint256",
		ReturnDescription:  "Token balance",
		DecimalsAdjustment: true,
		ExampleQuestion:    "What is the USDC balance of 0x123...?",
	},
	"allowance": {
		Name:        "allowance",
		Description: "Get the amount of tokens approved for spending",
		Args: []FunctionArg{
			{
				Name:        "owner",
				Type:        "address",
				Description: "Address that owns the tokens",
				Example:     "0x1234567890123456789012345678901234567890",
			},
			{
				Name:        "spender",
				Type:        "address",
				Description: "Address approved to spend the tokens",
				Example:     "0x0987654321098765432109876543210987654321",
			},
		},
		ReturnType:         "uint256",
		ReturnDescription:  "Amount of tokens approved for spending",
		DecimalsAdjustment: true,
		ExampleQuestion:    "What is the USDC allowance of 0x123... for 0x456...?",
	},
}

// LookupFunction returns the registry entry for an ERC-20 function name.
func LookupFunction(name string) (FunctionMetadata, bool) {
	meta, ok := erc20Functions[name]
	return meta, ok
}

// FunctionNames lists the supported function names, sorted.
func FunctionNames() []string {
	names := make([]string, 0, len(erc20Functions))
	for name := range erc20Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExampleQuestions returns one example query per registry function.
func ExampleQuestions() []string {
	names := FunctionNames()
	examples := make([]string, 0, len(names))
	for _, name := range names {
		examples = append(examples, erc20Functions[name].ExampleQuestion)
	}
	return examples
}

// SystemPrompt builds the closed system prompt for structured parsing.
// It enumerates only the supported functions and the known tokens; the
// model is never given room to invent either.
func SystemPrompt() string {
	var functions []string
	for _, name := range FunctionNames() {
		meta := erc20Functions[name]
		line := fmt.Sprintf("- %s: %s", meta.Name, meta.Description)
		if len(meta.Args) > 0 {
			args := make([]string, len(meta.Args))
			for i, arg := range meta.Args {
				args[i] = fmt.Sprintf("%s (%s)", arg.Name, arg.Type)
			}
			line += " [args: " + strings.Join(args, ", ") + "]"
		}
		functions = append(functions, line)
	}

	var b strings.Builder
	b.WriteString("You are a blockchain assistant that converts natural language questions about ERC-20 tokens into structured queries.\n\n")
	b.WriteString("Available functions:\n")
	b.WriteString(strings.Join(functions, "\n"))
	b.WriteString("\n\nKnown tokens and their addresses:\n")
	b.WriteString(strings.Join(TokenDescriptions(), "\n"))
	b.WriteString("\n\nIMPORTANT: You must respond with ONLY a valid JSON object in this exact format:\n")
	b.WriteString(`{"contract_address": "0x...", "function": "function_name", "args": [], "abi_type": "ERC20"}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("1. Only use the functions listed above\n")
	b.WriteString("2. For known tokens, ALWAYS use their exact contract addresses from the list above\n")
	b.WriteString("3. For unknown tokens, you must be given a valid contract address in the question\n")
	b.WriteString("4. Include all required arguments in the args array\n")
	b.WriteString("5. ONLY return the JSON object, no other text or comments\n")
	b.WriteString("6. NEVER use placeholder addresses\n")
	return b.String()
}
