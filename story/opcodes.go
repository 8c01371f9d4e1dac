package story

// Opcode identifies a decoded instruction independently of its encoding
// form. ILLEGAL marks table slots with no v3 meaning.
type Opcode uint8

// Two-operand opcodes (long form, or variable form with bit 5 clear).
const (
	ILLEGAL Opcode = iota
	JE
	JL
	JG
	DEC_CHK
	INC_CHK
	JIN
	TEST
	OR
	AND
	TEST_ATTR
	SET_ATTR
	CLEAR_ATTR
	STORE
	INSERT_OBJ
	LOADW
	LOADB
	GET_PROP
	GET_PROP_ADDR
	GET_NEXT_PROP
	ADD
	SUB
	MUL
	DIV
	MOD
	CALL_2S
	CALL_2N
	SET_COLOUR
	THROW
)

// One-operand opcodes (short form).
const (
	JZ Opcode = iota + 32
	GET_SIBLING
	GET_CHILD
	GET_PARENT
	GET_PROP_LEN
	INC
	DEC
	PRINT_ADDR
	CALL_1S
	REMOVE_OBJ
	PRINT_OBJ
	RET
	JUMP
	PRINT_PADDR
	LOAD
	NOT
)

// Zero-operand opcodes (short form with both type bits set).
const (
	RTRUE Opcode = iota + 64
	RFALSE
	PRINT
	PRINT_RET
	NOP
	SAVE
	RESTORE
	RESTART
	RET_POPPED
	POP
	QUIT
	NEW_LINE
	SHOW_STATUS
	VERIFY
	EXTENDED
	PIRACY
)

// Variable-count opcodes (variable form with bit 5 set).
const (
	CALL Opcode = iota + 96
	STOREW
	STOREB
	PUT_PROP
	SREAD
	PRINT_CHAR
	PRINT_NUM
	RANDOM
	PUSH
	PULL
	SPLIT_WINDOW
	SET_WINDOW
	CALL_VS2
	ERASE_WINDOW
	ERASE_LINE
	SET_CURSOR
	GET_CURSOR
	SET_TEXT_STYLE
	BUFFER_MODE
	OUTPUT_STREAM
	INPUT_STREAM
	SOUND_EFFECT
	READ_CHAR
	SCAN_TABLE
)

// The four identity tables, keyed by the low opcode bits. Slot 0 of the
// two-operand table and its last three slots have no meaning in any
// version.
var op2Table = [32]Opcode{
	ILLEGAL, JE, JL, JG, DEC_CHK, INC_CHK, JIN, TEST,
	OR, AND, TEST_ATTR, SET_ATTR, CLEAR_ATTR, STORE, INSERT_OBJ, LOADW,
	LOADB, GET_PROP, GET_PROP_ADDR, GET_NEXT_PROP, ADD, SUB, MUL, DIV,
	MOD, CALL_2S, CALL_2N, SET_COLOUR, THROW, ILLEGAL, ILLEGAL, ILLEGAL,
}

var op1Table = [16]Opcode{
	JZ, GET_SIBLING, GET_CHILD, GET_PARENT, GET_PROP_LEN, INC, DEC, PRINT_ADDR,
	CALL_1S, REMOVE_OBJ, PRINT_OBJ, RET, JUMP, PRINT_PADDR, LOAD, NOT,
}

var op0Table = [16]Opcode{
	RTRUE, RFALSE, PRINT, PRINT_RET, NOP, SAVE, RESTORE, RESTART,
	RET_POPPED, POP, QUIT, NEW_LINE, SHOW_STATUS, VERIFY, EXTENDED, PIRACY,
}

var varTable = [32]Opcode{
	CALL, STOREW, STOREB, PUT_PROP, SREAD, PRINT_CHAR, PRINT_NUM, RANDOM,
	PUSH, PULL, SPLIT_WINDOW, SET_WINDOW, CALL_VS2, ERASE_WINDOW, ERASE_LINE, SET_CURSOR,
	GET_CURSOR, SET_TEXT_STYLE, BUFFER_MODE, OUTPUT_STREAM, INPUT_STREAM, SOUND_EFFECT, READ_CHAR, SCAN_TABLE,
	ILLEGAL, ILLEGAL, ILLEGAL, ILLEGAL, ILLEGAL, ILLEGAL, ILLEGAL, ILLEGAL,
}

// OpcodeNames maps opcodes to their conventional assembler names.
var OpcodeNames = map[Opcode]string{
	ILLEGAL: "illegal",

	JE: "je", JL: "jl", JG: "jg", DEC_CHK: "dec_chk", INC_CHK: "inc_chk",
	JIN: "jin", TEST: "test", OR: "or", AND: "and", TEST_ATTR: "test_attr",
	SET_ATTR: "set_attr", CLEAR_ATTR: "clear_attr", STORE: "store",
	INSERT_OBJ: "insert_obj", LOADW: "loadw", LOADB: "loadb",
	GET_PROP: "get_prop", GET_PROP_ADDR: "get_prop_addr",
	GET_NEXT_PROP: "get_next_prop", ADD: "add", SUB: "sub", MUL: "mul",
	DIV: "div", MOD: "mod", CALL_2S: "call_2s", CALL_2N: "call_2n",
	SET_COLOUR: "set_colour", THROW: "throw",

	JZ: "jz", GET_SIBLING: "get_sibling", GET_CHILD: "get_child",
	GET_PARENT: "get_parent", GET_PROP_LEN: "get_prop_len", INC: "inc",
	DEC: "dec", PRINT_ADDR: "print_addr", CALL_1S: "call_1s",
	REMOVE_OBJ: "remove_obj", PRINT_OBJ: "print_obj", RET: "ret",
	JUMP: "jump", PRINT_PADDR: "print_paddr", LOAD: "load", NOT: "not",

	RTRUE: "rtrue", RFALSE: "rfalse", PRINT: "print", PRINT_RET: "print_ret",
	NOP: "nop", SAVE: "save", RESTORE: "restore", RESTART: "restart",
	RET_POPPED: "ret_popped", POP: "pop", QUIT: "quit", NEW_LINE: "new_line",
	SHOW_STATUS: "show_status", VERIFY: "verify", EXTENDED: "extended",
	PIRACY: "piracy",

	CALL: "call", STOREW: "storew", STOREB: "storeb", PUT_PROP: "put_prop",
	SREAD: "sread", PRINT_CHAR: "print_char", PRINT_NUM: "print_num",
	RANDOM: "random", PUSH: "push", PULL: "pull",
	SPLIT_WINDOW: "split_window", SET_WINDOW: "set_window",
	CALL_VS2: "call_vs2", ERASE_WINDOW: "erase_window",
	ERASE_LINE: "erase_line", SET_CURSOR: "set_cursor",
	GET_CURSOR: "get_cursor", SET_TEXT_STYLE: "set_text_style",
	BUFFER_MODE: "buffer_mode", OUTPUT_STREAM: "output_stream",
	INPUT_STREAM: "input_stream", SOUND_EFFECT: "sound_effect",
	READ_CHAR: "read_char", SCAN_TABLE: "scan_table",
}

// Name returns the conventional assembler name for op.
func (op Opcode) Name() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "unknown"
}

// OpcodeInfo carries the per-opcode decode and control-flow metadata.
type OpcodeInfo struct {
	Store  bool // a store byte follows the operands
	Branch bool // one or two branch bytes follow
	Text   bool // inline ZSCII text follows
	Call   bool // first large operand is a packed routine address
	Stops  bool // control never continues to the next instruction
}

// opcodeInfo is the v3 metadata table. Opcodes absent from the table have
// no store, branch, text or call behaviour and continue to the next
// instruction.
var opcodeInfo = map[Opcode]OpcodeInfo{
	OR:            {Store: true},
	AND:           {Store: true},
	LOADW:         {Store: true},
	LOADB:         {Store: true},
	GET_PROP:      {Store: true},
	GET_PROP_ADDR: {Store: true},
	GET_NEXT_PROP: {Store: true},
	ADD:           {Store: true},
	SUB:           {Store: true},
	MUL:           {Store: true},
	DIV:           {Store: true},
	MOD:           {Store: true},
	CALL_2S:       {Store: true, Call: true},
	CALL_2N:       {Call: true},

	JE:        {Branch: true},
	JL:        {Branch: true},
	JG:        {Branch: true},
	DEC_CHK:   {Branch: true},
	INC_CHK:   {Branch: true},
	JIN:       {Branch: true},
	TEST:      {Branch: true},
	TEST_ATTR: {Branch: true},

	JZ:           {Branch: true},
	GET_SIBLING:  {Store: true, Branch: true},
	GET_CHILD:    {Store: true, Branch: true},
	GET_PARENT:   {Store: true},
	GET_PROP_LEN: {Store: true},
	CALL_1S:      {Store: true, Call: true},
	RET:          {Stops: true},
	JUMP:         {Stops: true},
	LOAD:         {Store: true},
	NOT:          {Store: true},

	RTRUE:      {Stops: true},
	RFALSE:     {Stops: true},
	PRINT:      {Text: true},
	PRINT_RET:  {Text: true, Stops: true},
	SAVE:       {Branch: true},
	RESTORE:    {Branch: true},
	RESTART:    {Stops: true},
	RET_POPPED: {Stops: true},
	QUIT:       {Stops: true},
	VERIFY:     {Branch: true},
	PIRACY:     {Branch: true},

	CALL:       {Store: true, Call: true},
	CALL_VS2:   {Store: true, Call: true},
	RANDOM:     {Store: true},
	READ_CHAR:  {Store: true},
	SCAN_TABLE: {Store: true, Branch: true},

	THROW: {Stops: true},
}

// Info returns op's metadata.
func (op Opcode) Info() OpcodeInfo {
	return opcodeInfo[op]
}
