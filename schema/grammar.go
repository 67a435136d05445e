package schema

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var protoLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*|(?s:/\*.*?\*/)`},
	{Name: "String", Pattern: `"(\\.|[^"\\\n])*"|'(\\.|[^'\\\n])*'`},
	{Name: "Float", Pattern: `(\d+\.\d*|\.\d+)([eE][-+]?\d+)?|\d+[eE][-+]?\d+`},
	{Name: "Int", Pattern: `0[xX][0-9a-fA-F]+|\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[-+;:,.=<>(){}\[\]/]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var protoParser = participle.MustBuild[protoFile](
	participle.Lexer(protoLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(4),
)

type protoFile struct {
	Pos     lexer.Position
	Entries []*protoEntry `parser:"@@*"`
}

type protoEntry struct {
	Pos     lexer.Position
	Syntax  *protoSyntax  `parser:"  @@"`
	Package *protoPackage `parser:"| @@"`
	Import  *protoImport  `parser:"| @@"`
	Option  *protoOption  `parser:"| 'option' @@ ';'"`
	Message *protoMessage `parser:"| @@"`
	Enum    *protoEnum    `parser:"| @@"`
	Service *protoService `parser:"| @@"`
	Extend  *protoExtend  `parser:"| @@"`
	Empty   bool          `parser:"| @';'"`
}

type protoSyntax struct {
	Pos     lexer.Position
	Keyword string `parser:"@( 'syntax' | 'edition' ) '='"`
	Value   string `parser:"@String ';'"`
}

type protoPackage struct {
	Pos  lexer.Position
	Name string `parser:"'package' @( Ident ( '.' Ident )* ) ';'"`
}

type protoImport struct {
	Pos      lexer.Position
	Modifier string `parser:"'import' @( 'public' | 'weak' )?"`
	Path     string `parser:"@String ';'"`
}

type protoOption struct {
	Pos   lexer.Position
	Name  string      `parser:"@( '(' '.'? Ident ( '.' Ident )* ')' | Ident ) @( '.' Ident )*"`
	Value *protoValue `parser:"'=' @@"`
}

type protoValue struct {
	Pos       lexer.Position
	Strings   []string        `parser:"  @String+"`
	Number    *string         `parser:"| @( ( '-' | '+' )? ( Float | Int | 'inf' | 'nan' ) )"`
	Ident     *string         `parser:"| @Ident"`
	Aggregate *protoAggregate `parser:"| '{' @@ '}'"`
}

// protoAggregate swallows text-format option values; their content is not
// interpreted.
type protoAggregate struct {
	Items []*protoAggregateItem `parser:"@@*"`
}

type protoAggregateItem struct {
	Token  string          `parser:"  @( Ident | String | Int | Float | ':' | ',' | ';' | '-' | '+' | '.' | '/' | '=' | '<' | '>' | '[' | ']' | '(' | ')' )"`
	Nested *protoAggregate `parser:"| '{' @@ '}'"`
}

type protoMessage struct {
	Pos     lexer.Position
	Name    string               `parser:"'message' @Ident '{'"`
	Entries []*protoMessageEntry `parser:"@@* '}'"`
}

type protoMessageEntry struct {
	Pos        lexer.Position
	Option     *protoOption     `parser:"  'option' @@ ';'"`
	Message    *protoMessage    `parser:"| @@"`
	Enum       *protoEnum       `parser:"| @@"`
	Extend     *protoExtend     `parser:"| @@"`
	Oneof      *protoOneof      `parser:"| @@"`
	Map        *protoMapField   `parser:"| @@"`
	Reserved   *protoReserved   `parser:"| @@"`
	Extensions *protoExtensions `parser:"| @@"`
	Group      *protoGroup      `parser:"| @@"`
	Field      *protoField      `parser:"| @@"`
	Empty      bool             `parser:"| @';'"`
}

// protoGroup is recognized only so it can be rejected with a clear message.
type protoGroup struct {
	Pos     lexer.Position
	Label   string               `parser:"@( 'optional' | 'required' | 'repeated' )? 'group'"`
	Name    string               `parser:"@Ident '='"`
	Number  string               `parser:"@Int"`
	Options []*protoOption       `parser:"( '[' @@ ( ',' @@ )* ']' )? '{'"`
	Entries []*protoMessageEntry `parser:"@@* '}'"`
}

type protoField struct {
	Pos     lexer.Position
	Label   string         `parser:"@( 'optional' | 'required' | 'repeated' )?"`
	Type    string         `parser:"@( '.'? Ident ( '.' Ident )* )"`
	Name    string         `parser:"@Ident '='"`
	Number  string         `parser:"@Int"`
	Options []*protoOption `parser:"( '[' @@ ( ',' @@ )* ']' )? ';'"`
}

type protoMapField struct {
	Pos     lexer.Position
	Key     string         `parser:"'map' '<' @Ident ','"`
	Value   string         `parser:"@( '.'? Ident ( '.' Ident )* ) '>'"`
	Name    string         `parser:"@Ident '='"`
	Number  string         `parser:"@Int"`
	Options []*protoOption `parser:"( '[' @@ ( ',' @@ )* ']' )? ';'"`
}

type protoOneof struct {
	Pos     lexer.Position
	Name    string             `parser:"'oneof' @Ident '{'"`
	Entries []*protoOneofEntry `parser:"@@* '}'"`
}

type protoOneofEntry struct {
	Option *protoOption `parser:"  'option' @@ ';'"`
	Group  *protoGroup  `parser:"| @@"`
	Field  *protoField  `parser:"| @@"`
	Empty  bool         `parser:"| @';'"`
}

type protoReserved struct {
	Pos    lexer.Position
	Ranges []*protoRange `parser:"'reserved' ( @@ ( ',' @@ )*"`
	Names  []string      `parser:"| @String ( ',' @String )* ) ';'"`
}

type protoExtensions struct {
	Pos     lexer.Position
	Ranges  []*protoRange  `parser:"'extensions' @@ ( ',' @@ )*"`
	Options []*protoOption `parser:"( '[' @@ ( ',' @@ )* ']' )? ';'"`
}

type protoRange struct {
	Pos   lexer.Position
	Start string `parser:"@Int"`
	End   string `parser:"( 'to' @( Int | 'max' ) )?"`
}

type protoEnum struct {
	Pos     lexer.Position
	Name    string            `parser:"'enum' @Ident '{'"`
	Entries []*protoEnumEntry `parser:"@@* '}'"`
}

type protoEnumEntry struct {
	Option   *protoOption    `parser:"  'option' @@ ';'"`
	Reserved *protoReserved  `parser:"| @@"`
	Value    *protoEnumValue `parser:"| @@"`
	Empty    bool            `parser:"| @';'"`
}

type protoEnumValue struct {
	Pos     lexer.Position
	Name    string         `parser:"@Ident '='"`
	Number  string         `parser:"@( '-'? Int )"`
	Options []*protoOption `parser:"( '[' @@ ( ',' @@ )* ']' )? ';'"`
}

type protoService struct {
	Pos     lexer.Position
	Name    string               `parser:"'service' @Ident '{'"`
	Entries []*protoServiceEntry `parser:"@@* '}'"`
}

type protoServiceEntry struct {
	Option *protoOption `parser:"  'option' @@ ';'"`
	Method *protoMethod `parser:"| @@"`
	Empty  bool         `parser:"| @';'"`
}

type protoMethod struct {
	Pos             lexer.Position
	Name            string         `parser:"'rpc' @Ident '('"`
	ClientStreaming bool           `parser:"@'stream'?"`
	Input           string         `parser:"@( '.'? Ident ( '.' Ident )* ) ')'"`
	ServerStreaming bool           `parser:"'returns' '(' @'stream'?"`
	Output          string         `parser:"@( '.'? Ident ( '.' Ident )* ) ')'"`
	Options         []*protoOption `parser:"( '{' ( 'option' @@ ';' | ';' )* '}' | ';' )"`
}

type protoExtend struct {
	Pos      lexer.Position
	Extendee string        `parser:"'extend' @( '.'? Ident ( '.' Ident )* ) '{'"`
	Fields   []*protoField `parser:"( @@ | ';' )* '}'"`
}
